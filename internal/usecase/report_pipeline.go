package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	domsvc "CoinPulse/internal/domain/service"
	"CoinPulse/internal/services/narrative"
	"CoinPulse/internal/services/processor"
	"CoinPulse/internal/services/scoring"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"

	"github.com/google/uuid"
)

// ReportRequest asks for one asset's report to be mailed to recipients.
// With no recipients the run stops after COMPOSE.
type ReportRequest struct {
	Asset      models.Asset
	Recipients []string
}

// PipelineDeps groups the collaborators of a report run. Events and Metrics
// may be nil.
type PipelineDeps struct {
	Store     repository.MetricStore
	Scores    repository.ScoreRepository
	Processor *processor.Processor
	Narrator  domsvc.NarrativeGenerator
	Charts    domsvc.ChartRenderer
	Composer  domsvc.DocumentComposer
	Mailer    domsvc.Mailer
	Events    repository.EventPublisher
	Metrics   repository.Metrics
}

// ReportPipeline runs FETCH, PROCESS and SCORE, then the best-effort tail
// NARRATE, CHART, COMPOSE and DISPATCH. Only a failed fetch fails the run.
type ReportPipeline struct {
	PipelineDeps
	lookback time.Duration
	catalog  []models.MetricSpec
	now      func() time.Time
	l        *applogger.Logger
}

func NewReportPipeline(deps PipelineDeps, lookback time.Duration, l *applogger.Logger) *ReportPipeline {
	if l == nil {
		l = applogger.Nop()
	}
	if deps.Processor == nil {
		deps.Processor = processor.New(l)
	}
	return &ReportPipeline{
		PipelineDeps: deps,
		lookback:     lookback,
		catalog:      models.DefaultCatalog,
		now:          time.Now,
		l:            l,
	}
}

// Run executes one report run. The returned error is non-nil only when
// FETCH failed; every later failure is reported through a partial result.
func (p *ReportPipeline) Run(ctx context.Context, req ReportRequest) (models.RunResult, error) {
	start := p.now()
	dbg := models.RunDebug{RunID: uuid.NewString(), Recipients: len(req.Recipients)}
	l := p.l.With(applogger.String("run_id", dbg.RunID), applogger.String("asset", req.Asset.Slug))
	l.Info("report run started", applogger.Int("recipients", len(req.Recipients)))

	metrics, score, err := p.prepare(ctx, req.Asset, p.lookback, &dbg, l)
	if err != nil {
		dbg.Error = err.Error()
		dbg.DurationMs = p.now().Sub(start).Milliseconds()
		p.recordRun("report", "failed")
		l.Error("report run failed", applogger.String("stage", string(dbg.Stage)), applogger.Error(err))
		return models.RunResult{Debug: dbg}, err
	}

	p.persist(ctx, &score, &dbg, l)

	res := models.RunResult{Success: true, Score: &score}
	pdf, tailErr := p.tail(ctx, req, metrics, score, &dbg, l)
	res.PDF = pdf
	if tailErr != nil {
		res.Partial = true
		dbg.Error = tailErr.Error()
		l.Warn("report run partial", applogger.String("stage", string(dbg.Stage)), applogger.Error(tailErr))
	} else {
		dbg.Stage = models.StageDone
	}
	dbg.DurationMs = p.now().Sub(start).Milliseconds()
	res.Debug = dbg

	outcome := "success"
	if res.Partial {
		outcome = "partial"
	}
	p.recordRun("report", outcome)
	p.publish(ctx, "report.completed", req.Asset.Slug, score, res.Partial, len(req.Recipients), dbg.RunID, l)

	l.Info("report run finished",
		applogger.String("outcome", outcome),
		applogger.Int("normalized_score", score.NormalizedScore),
		applogger.Int64("duration_ms", dbg.DurationMs))
	return res, nil
}

// prepare covers FETCH, PROCESS and score computation. Persisting the score
// is left to the caller.
func (p *ReportPipeline) prepare(ctx context.Context, asset models.Asset, lookback time.Duration, dbg *models.RunDebug, l *applogger.Logger) (map[string]models.ProcessedMetric, models.AggregateScore, error) {
	dbg.Stage = models.StageFetch
	t := p.now()
	from, to := util.Lookback(t, lookback)
	records, err := p.Store.FetchRecords(ctx, asset.Slug, models.MetricTypes(p.catalog), from, to)
	p.observe(models.StageFetch, t)
	if err != nil {
		p.recordError(models.StageFetch)
		return nil, models.AggregateScore{}, fmt.Errorf("fetch metrics for %s: %w", asset.Slug, err)
	}

	dbg.Stage = models.StageProcess
	t = p.now()
	metrics := p.Processor.ProcessCatalog(records, p.catalog)
	p.observe(models.StageProcess, t)
	for _, pm := range metrics {
		if !pm.Empty() {
			dbg.MetricsFetched++
		}
		if processor.HasMeaningfulData(pm) {
			dbg.MetricsWithData++
		}
	}
	l.Debug("metrics processed",
		applogger.Int("records", len(records)),
		applogger.Int("metrics", dbg.MetricsFetched),
		applogger.Int("meaningful", dbg.MetricsWithData))

	dbg.Stage = models.StageScore
	score := scoring.Score(asset.Slug, metrics, p.now())
	if p.Metrics != nil {
		p.Metrics.RecordAggregateScore(asset.Slug, float64(score.NormalizedScore))
	}
	return metrics, score, nil
}

func (p *ReportPipeline) persist(ctx context.Context, score *models.AggregateScore, dbg *models.RunDebug, l *applogger.Logger) {
	if p.Scores == nil {
		return
	}
	if err := p.Scores.Append(ctx, score); err != nil {
		p.recordError(models.StageScore)
		l.Error("persist aggregate score failed", applogger.Error(err))
		return
	}
	dbg.ScorePersisted = true
}

func (p *ReportPipeline) tail(ctx context.Context, req ReportRequest, metrics map[string]models.ProcessedMetric, score models.AggregateScore, dbg *models.RunDebug, l *applogger.Logger) ([]byte, error) {
	doc, err := p.document(ctx, req.Asset, metrics, score, dbg, l)
	if err != nil {
		return nil, err
	}

	dbg.Stage = models.StageCompose
	t := p.now()
	pdf, err := p.Composer.Compose(ctx, doc)
	p.observe(models.StageCompose, t)
	if err != nil {
		p.recordError(models.StageCompose)
		return nil, fmt.Errorf("compose: %w", err)
	}
	dbg.PDFBytes = len(pdf)

	if len(req.Recipients) == 0 {
		return pdf, nil
	}

	dbg.Stage = models.StageDispatch
	t = p.now()
	err = p.Mailer.SendReport(ctx, req.Recipients, doc, pdf)
	p.observe(models.StageDispatch, t)
	if err != nil {
		p.recordError(models.StageDispatch)
		return pdf, fmt.Errorf("dispatch: %w", err)
	}
	return pdf, nil
}

// document covers NARRATE and CHART for one asset. A missing chart leaves
// its section without an image; no analyses at all is an error.
func (p *ReportPipeline) document(ctx context.Context, asset models.Asset, metrics map[string]models.ProcessedMetric, score models.AggregateScore, dbg *models.RunDebug, l *applogger.Logger) (models.ReportDocument, error) {
	band := scoring.Band(score.NormalizedScore)

	dbg.Stage = models.StageNarrate
	t := p.now()
	analyses := p.Narrator.GenerateAll(ctx, metrics, p.catalog, asset)
	dbg.Narratives += len(analyses)
	if len(analyses) == 0 {
		p.observe(models.StageNarrate, t)
		p.recordError(models.StageNarrate)
		if err := ctx.Err(); err != nil {
			return models.ReportDocument{}, fmt.Errorf("narrate: %w", err)
		}
		return models.ReportDocument{}, fmt.Errorf("narrate: %w", repository.ErrNoNarratives)
	}
	summary, err := p.Narrator.GenerateOverallSummary(ctx, analyses, asset)
	p.observe(models.StageNarrate, t)
	if err != nil {
		l.Warn("overall summary failed, using fallback", applogger.Error(err))
		summary = narrative.FallbackSummary(asset, score, band, len(analyses))
	}

	dbg.Stage = models.StageChart
	t = p.now()
	sections := make([]models.ReportSection, 0, len(analyses))
	for _, a := range analyses {
		sec := models.ReportSection{Analysis: a}
		png, err := p.Charts.Render(a.Data.Data, a.Title, a.Color)
		if err != nil {
			p.recordError(models.StageChart)
			l.Warn("chart render failed", applogger.String("metric", a.Metric), applogger.Error(err))
		} else {
			sec.Chart = png
			dbg.Charts++
		}
		sections = append(sections, sec)
	}
	p.observe(models.StageChart, t)

	return models.ReportDocument{
		Asset:       asset,
		Summary:     summary,
		Score:       score,
		Band:        band,
		Sections:    sections,
		GeneratedAt: p.now().UTC(),
	}, nil
}

func (p *ReportPipeline) publish(ctx context.Context, kind, assetSlug string, score models.AggregateScore, partial bool, recipients int, runID string, l *applogger.Logger) {
	if p.Events == nil {
		return
	}
	ev := models.ReportEvent{
		RunID:           runID,
		Kind:            kind,
		AssetSlug:       assetSlug,
		AggregateScore:  score.AggregateScore,
		NormalizedScore: score.NormalizedScore,
		MetricCount:     score.MetricCount,
		Partial:         partial,
		Recipients:      recipients,
		At:              p.now().UTC(),
	}
	if err := p.Events.PublishReportEvent(ctx, ev); err != nil {
		p.recordError("publish")
		l.Warn("publish report event failed", applogger.Error(err))
	}
}

func (p *ReportPipeline) observe(stage models.Stage, since time.Time) {
	if p.Metrics != nil {
		p.Metrics.RecordLatency(string(stage), p.now().Sub(since).Seconds())
	}
}

func (p *ReportPipeline) recordError(stage models.Stage) {
	if p.Metrics != nil {
		p.Metrics.RecordError(string(stage))
	}
}

func (p *ReportPipeline) recordRun(kind, outcome string) {
	if p.Metrics != nil {
		p.Metrics.RecordRun(kind, outcome)
	}
}

// IsClientError reports errors caused by the request rather than by a
// collaborator.
func IsClientError(err error) bool {
	return errors.Is(err, repository.ErrAssetNotFound) ||
		errors.Is(err, repository.ErrRecipientNotFound)
}
