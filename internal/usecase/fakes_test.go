package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
)

var errBoom = errors.New("boom")

func f(v float64) *float64 { return &v }

// seriesFor returns three records of one metric: two weeks ago, 24h ago and
// at now, the last two differing by change percent.
func seriesFor(asset, metricType string, now time.Time, base, changePct float64) []models.MetricRecord {
	return []models.MetricRecord{
		{AssetSlug: asset, MetricType: metricType, Datetime: now.AddDate(0, 0, -14), Value: f(base * 0.9)},
		{AssetSlug: asset, MetricType: metricType, Datetime: now.Add(-24 * time.Hour), Value: f(base)},
		{AssetSlug: asset, MetricType: metricType, Datetime: now, Value: f(base * (1 + changePct/100))},
	}
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string][]models.MetricRecord
	err     map[string]error
	calls   []string
	from    time.Time
	to      time.Time
}

func (s *fakeStore) FetchRecords(_ context.Context, asset string, _ []string, from, to time.Time) ([]models.MetricRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, asset)
	s.from, s.to = from, to
	if err := s.err[asset]; err != nil {
		return nil, err
	}
	return s.records[asset], nil
}

type fakeScores struct {
	mu       sync.Mutex
	appended []models.AggregateScore
	history  map[string][]models.AggregateScore
	err      error
	reads    int
}

func (s *fakeScores) Append(_ context.Context, score *models.AggregateScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.appended = append(s.appended, *score)
	if s.history == nil {
		s.history = map[string][]models.AggregateScore{}
	}
	s.history[score.AssetSlug] = append([]models.AggregateScore{*score}, s.history[score.AssetSlug]...)
	return nil
}

func (s *fakeScores) History(_ context.Context, asset string, limit int) ([]models.AggregateScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	h := s.history[asset]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

// fakeNarrator writes one analysis per catalog metric that has data.
type fakeNarrator struct {
	none       bool
	summaryErr error
	summaries  int
}

func (n *fakeNarrator) GenerateAll(_ context.Context, metrics map[string]models.ProcessedMetric, catalog []models.MetricSpec, asset models.Asset) []models.Analysis {
	if n.none {
		return nil
	}
	var out []models.Analysis
	for _, spec := range catalog {
		pm, ok := metrics[spec.Name]
		if !ok || pm.Empty() {
			continue
		}
		out = append(out, models.Analysis{
			Metric:  spec.Name,
			Title:   asset.Name + " " + spec.Title,
			Content: spec.Title + " moved.",
			Color:   spec.Color,
			Data:    pm,
		})
	}
	return out
}

func (n *fakeNarrator) GenerateOverallSummary(_ context.Context, analyses []models.Analysis, asset models.Asset) (string, error) {
	n.summaries++
	if n.summaryErr != nil {
		return "", n.summaryErr
	}
	return asset.Name + " summary", nil
}

type fakeCharts struct {
	failFor string
}

func (c *fakeCharts) Render(points []models.ChartPoint, title, _ string) ([]byte, error) {
	if c.failFor != "" && title == c.failFor {
		return nil, errBoom
	}
	return []byte("png:" + title), nil
}

type fakeComposer struct {
	err      error
	docs     []models.ReportDocument
	welcomes []models.WelcomeDocument
}

func (c *fakeComposer) Compose(_ context.Context, doc models.ReportDocument) ([]byte, error) {
	c.docs = append(c.docs, doc)
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-report"), nil
}

func (c *fakeComposer) ComposeWelcome(_ context.Context, doc models.WelcomeDocument) ([]byte, error) {
	c.welcomes = append(c.welcomes, doc)
	if c.err != nil {
		return nil, c.err
	}
	return []byte("%PDF-welcome"), nil
}

type sentReport struct {
	to  []string
	doc models.ReportDocument
	pdf []byte
}

type fakeMailer struct {
	mu       sync.Mutex
	err      error
	reports  []sentReport
	welcomes []models.WelcomeDocument
	notices  [][]models.Asset
}

func (m *fakeMailer) SendReport(_ context.Context, to []string, doc models.ReportDocument, pdf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reports = append(m.reports, sentReport{to: to, doc: doc, pdf: pdf})
	return nil
}

func (m *fakeMailer) SendWelcomeReport(_ context.Context, _ string, doc models.WelcomeDocument, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.welcomes = append(m.welcomes, doc)
	return nil
}

func (m *fakeMailer) SendProcessingNotice(_ context.Context, _ []string, assets []models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, assets)
	return nil
}

type fakeEvents struct {
	events []models.ReportEvent
	err    error
}

func (e *fakeEvents) PublishReportEvent(_ context.Context, ev models.ReportEvent) error {
	e.events = append(e.events, ev)
	return e.err
}

type fakeMetrics struct {
	mu      sync.Mutex
	runs    map[string]int
	errors  map[string]int
	scores  map[string]float64
	ingest  int
	latency []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{runs: map[string]int{}, errors: map[string]int{}, scores: map[string]float64{}}
}

func (m *fakeMetrics) RecordRun(kind, outcome string) {
	m.mu.Lock()
	m.runs[kind+"/"+outcome]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	m.latency = append(m.latency, op)
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAggregateScore(asset string, v float64) {
	m.mu.Lock()
	m.scores[asset] = v
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordIngested(_ string, n int) {
	m.mu.Lock()
	m.ingest += n
	m.mu.Unlock()
}

type fakeDirectory struct {
	assets     map[string]models.Asset
	recipients map[string]string
	subs       []models.Subscription
	err        error
}

func (d *fakeDirectory) FindAssets(_ context.Context, slugs []string) ([]models.Asset, error) {
	var out []models.Asset
	for _, s := range slugs {
		if a, ok := d.assets[s]; ok {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, errAssetNotFound
	}
	return out, nil
}

func (d *fakeDirectory) FindRecipient(_ context.Context, userID string) (string, error) {
	if email, ok := d.recipients[userID]; ok {
		return email, nil
	}
	return "", errRecipientNotFound
}

func (d *fakeDirectory) ActiveSubscriptions(context.Context) ([]models.Subscription, error) {
	return d.subs, d.err
}

var (
	errAssetNotFound     = repository.ErrAssetNotFound
	errRecipientNotFound = repository.ErrRecipientNotFound
)

func (m *fakeMailer) welcomeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.welcomes)
}

type queuedJob struct {
	msgType string
	payload interface{}
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
	err  error
}

func (q *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	_, err := q.EnqueueWithID(ctx, msgType, payload)
	return err
}

func (q *fakeQueue) EnqueueWithID(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, queuedJob{msgType: msgType, payload: payload})
	return fmt.Sprintf("job-%d", len(q.jobs)), nil
}
