package usecase

import (
	"context"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	bitcoin = models.Asset{Slug: "bitcoin", Name: "Bitcoin", Symbol: "BTC"}
)

func bitcoinRecords() []models.MetricRecord {
	var out []models.MetricRecord
	out = append(out, seriesFor("bitcoin", "price_usd", testNow, 60000, 5)...)
	out = append(out, seriesFor("bitcoin", "volume_usd", testNow, 3e10, -3)...)
	out = append(out, seriesFor("bitcoin", "rsi_1d", testNow, 50, 0.5)...)
	return out
}

type pipelineFixture struct {
	store    *fakeStore
	scores   *fakeScores
	narrator *fakeNarrator
	charts   *fakeCharts
	composer *fakeComposer
	mailer   *fakeMailer
	events   *fakeEvents
	metrics  *fakeMetrics
	pipeline *ReportPipeline
}

func newPipelineFixture() *pipelineFixture {
	fx := &pipelineFixture{
		store:    &fakeStore{records: map[string][]models.MetricRecord{"bitcoin": bitcoinRecords()}},
		scores:   &fakeScores{},
		narrator: &fakeNarrator{},
		charts:   &fakeCharts{},
		composer: &fakeComposer{},
		mailer:   &fakeMailer{},
		events:   &fakeEvents{},
		metrics:  newFakeMetrics(),
	}
	fx.pipeline = NewReportPipeline(PipelineDeps{
		Store:    fx.store,
		Scores:   fx.scores,
		Narrator: fx.narrator,
		Charts:   fx.charts,
		Composer: fx.composer,
		Mailer:   fx.mailer,
		Events:   fx.events,
		Metrics:  fx.metrics,
	}, 90*24*time.Hour, nil)
	fx.pipeline.now = func() time.Time { return testNow }
	return fx
}

func (fx *pipelineFixture) run(t *testing.T, recipients ...string) models.RunResult {
	t.Helper()
	res, err := fx.pipeline.Run(context.Background(), ReportRequest{Asset: bitcoin, Recipients: recipients})
	require.NoError(t, err)
	return res
}

func TestReportPipeline_Success(t *testing.T) {
	fx := newPipelineFixture()

	res := fx.run(t, "ana@example.com", "ben@example.com")

	assert.True(t, res.Success)
	assert.False(t, res.Partial)
	require.NotNil(t, res.Score)
	assert.Equal(t, 0, res.Score.AggregateScore, "price and volume cancel, rsi is neutral")
	assert.Equal(t, 14, res.Score.MetricCount, "metrics without data still count")
	assert.Equal(t, 0, res.Score.NormalizedScore)
	assert.Equal(t, models.ScoreBullish, res.Score.IndividualScores["price"])
	assert.Equal(t, models.ScoreBearish, res.Score.IndividualScores["volume"])
	assert.Equal(t, models.ScoreNeutral, res.Score.IndividualScores["rsi"])

	assert.Equal(t, models.StageDone, res.Debug.Stage)
	assert.NotEmpty(t, res.Debug.RunID)
	assert.True(t, res.Debug.ScorePersisted)
	assert.Equal(t, 3, res.Debug.MetricsFetched)
	assert.Equal(t, 3, res.Debug.Narratives)
	assert.Equal(t, 3, res.Debug.Charts)
	assert.Equal(t, len("%PDF-report"), res.Debug.PDFBytes)
	assert.Empty(t, res.Debug.Error)

	require.Len(t, fx.scores.appended, 1)
	assert.Equal(t, testNow, fx.scores.appended[0].AnalysisDate)
	assert.Equal(t, testNow.Add(-90*24*time.Hour), fx.store.from)

	require.Len(t, fx.mailer.reports, 1)
	sent := fx.mailer.reports[0]
	assert.Equal(t, []string{"ana@example.com", "ben@example.com"}, sent.to)
	assert.Equal(t, "Bitcoin summary", sent.doc.Summary)
	assert.Equal(t, "Neutral", sent.doc.Band.Label)
	require.Len(t, sent.doc.Sections, 3)
	assert.Equal(t, "price", sent.doc.Sections[0].Analysis.Metric)
	assert.Equal(t, []byte("%PDF-report"), sent.pdf)

	require.Len(t, fx.events.events, 1)
	assert.Equal(t, "report.completed", fx.events.events[0].Kind)
	assert.Equal(t, res.Debug.RunID, fx.events.events[0].RunID)
	assert.Equal(t, 1, fx.metrics.runs["report/success"])
}

func TestReportPipeline_TailFailuresArePartial(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(fx *pipelineFixture)
		stage     models.Stage
		errorKind string
	}{
		{
			name:      "pdf conversion fails",
			setup:     func(fx *pipelineFixture) { fx.composer.err = errBoom },
			stage:     models.StageCompose,
			errorKind: "compose",
		},
		{
			name:      "email fails",
			setup:     func(fx *pipelineFixture) { fx.mailer.err = errBoom },
			stage:     models.StageDispatch,
			errorKind: "dispatch",
		},
		{
			name:      "no narratives",
			setup:     func(fx *pipelineFixture) { fx.narrator.none = true },
			stage:     models.StageNarrate,
			errorKind: "narrate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newPipelineFixture()
			tt.setup(fx)

			res := fx.run(t, "ana@example.com")

			assert.True(t, res.Success)
			assert.True(t, res.Partial)
			require.NotNil(t, res.Score, "score survives a failed tail")
			assert.Equal(t, tt.stage, res.Debug.Stage)
			assert.NotEmpty(t, res.Debug.Error)
			assert.True(t, res.Debug.ScorePersisted)
			assert.Len(t, fx.scores.appended, 1)
			assert.Empty(t, fx.mailer.reports)
			assert.Equal(t, 1, fx.metrics.errors[tt.errorKind])
			assert.Equal(t, 1, fx.metrics.runs["report/partial"])
			require.Len(t, fx.events.events, 1)
			assert.True(t, fx.events.events[0].Partial)
		})
	}
}

func TestReportPipeline_NoNarrativesError(t *testing.T) {
	fx := newPipelineFixture()
	fx.narrator.none = true

	res := fx.run(t)

	assert.Contains(t, res.Debug.Error, repository.ErrNoNarratives.Error())
	assert.Empty(t, fx.composer.docs)
}

func TestReportPipeline_FetchFailureIsHard(t *testing.T) {
	fx := newPipelineFixture()
	fx.store.err = map[string]error{"bitcoin": errBoom}

	res, err := fx.pipeline.Run(context.Background(), ReportRequest{Asset: bitcoin, Recipients: []string{"ana@example.com"}})

	require.ErrorIs(t, err, errBoom)
	assert.False(t, res.Success)
	assert.Nil(t, res.Score)
	assert.Equal(t, models.StageFetch, res.Debug.Stage)
	assert.Empty(t, fx.scores.appended)
	assert.Empty(t, fx.events.events)
	assert.Equal(t, 1, fx.metrics.runs["report/failed"])
}

func TestReportPipeline_EmptyWindowScoresNeutral(t *testing.T) {
	fx := newPipelineFixture()
	fx.store.records = nil
	scored := 0
	for _, spec := range models.DefaultCatalog {
		if !spec.OHLC {
			scored++
		}
	}

	res := fx.run(t, "ana@example.com")

	assert.True(t, res.Success)
	assert.True(t, res.Partial)
	require.NotNil(t, res.Score)
	assert.Equal(t, 0, res.Score.AggregateScore)
	assert.Equal(t, 0, res.Score.NormalizedScore)
	assert.Equal(t, scored, res.Score.MetricCount, "metrics without data still count")
	assert.True(t, res.Debug.ScorePersisted)
	require.Len(t, fx.scores.appended, 1)
	assert.Contains(t, res.Debug.Error, repository.ErrNoNarratives.Error())
	assert.Empty(t, fx.mailer.reports)
}

func TestReportPipeline_ScorePersistenceFailureContinues(t *testing.T) {
	fx := newPipelineFixture()
	fx.scores.err = errBoom

	res := fx.run(t, "ana@example.com")

	assert.True(t, res.Success)
	assert.False(t, res.Partial)
	assert.False(t, res.Debug.ScorePersisted)
	assert.Len(t, fx.mailer.reports, 1)
	assert.Equal(t, 1, fx.metrics.errors["score"])
}

func TestReportPipeline_SummaryFallback(t *testing.T) {
	fx := newPipelineFixture()
	fx.narrator.summaryErr = errBoom

	res := fx.run(t, "ana@example.com")

	assert.False(t, res.Partial)
	require.Len(t, fx.composer.docs, 1)
	assert.Contains(t, fx.composer.docs[0].Summary, "Bitcoin (BTC)")
}

func TestReportPipeline_ChartFailureKeepsSection(t *testing.T) {
	fx := newPipelineFixture()
	fx.charts.failFor = "Bitcoin Trading Volume"

	res := fx.run(t, "ana@example.com")

	assert.False(t, res.Partial)
	assert.Equal(t, 2, res.Debug.Charts)
	sections := fx.composer.docs[0].Sections
	require.Len(t, sections, 3)
	assert.Nil(t, sections[1].Chart)
	assert.NotNil(t, sections[0].Chart)
}

func TestReportPipeline_NoRecipientsReturnsPDF(t *testing.T) {
	fx := newPipelineFixture()

	res := fx.run(t)

	assert.False(t, res.Partial)
	assert.Equal(t, []byte("%PDF-report"), res.PDF)
	assert.Equal(t, models.StageDone, res.Debug.Stage)
	assert.Empty(t, fx.mailer.reports)
}

func TestReportPipeline_EventFailureIsIgnored(t *testing.T) {
	fx := newPipelineFixture()
	fx.events.err = errBoom

	res := fx.run(t, "ana@example.com")

	assert.True(t, res.Success)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, fx.metrics.errors["publish"])
}
