package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/queue"

	"github.com/google/uuid"
)

// WelcomeReport builds the onboarding report: every requested asset in one
// document, mailed once to the new subscriber. Welcome runs do not append to
// the score history.
type WelcomeReport struct {
	pipeline *ReportPipeline
	dir      repository.Directory
	queue    queue.QueueService
	lookback time.Duration
	timeout  time.Duration
	l        *applogger.Logger
}

// NewWelcomeReport wires a welcome use case. q may be nil, in which case
// async requests run on a background goroutine.
func NewWelcomeReport(p *ReportPipeline, dir repository.Directory, q queue.QueueService, lookback, timeout time.Duration, l *applogger.Logger) *WelcomeReport {
	if l == nil {
		l = applogger.Nop()
	}
	return &WelcomeReport{pipeline: p, dir: dir, queue: q, lookback: lookback, timeout: timeout, l: l}
}

// Run resolves the recipient and assets, then documents each asset. An
// asset whose fetch fails is skipped; the run fails only when every asset
// did.
func (w *WelcomeReport) Run(ctx context.Context, userID string, slugs []string) (models.RunResult, error) {
	p := w.pipeline
	start := p.now()
	dbg := models.RunDebug{RunID: uuid.NewString()}
	l := w.l.With(applogger.String("run_id", dbg.RunID), applogger.String("user_id", userID))

	email, assets, err := w.resolve(ctx, userID, slugs)
	if err != nil {
		dbg.Error = err.Error()
		p.recordRun("welcome", "failed")
		return models.RunResult{Debug: dbg}, err
	}
	dbg.Recipients = 1
	l.Info("welcome run started", applogger.Int("assets", len(assets)))

	var (
		docs   []models.ReportDocument
		scores []models.AggregateScore
		errs   []error
	)
	for _, asset := range assets {
		al := l.With(applogger.String("asset", asset.Slug))
		metrics, score, err := p.prepare(ctx, asset, w.lookback, &dbg, al)
		if err != nil {
			al.Warn("welcome asset skipped", applogger.Error(err))
			errs = append(errs, err)
			continue
		}
		scores = append(scores, score)
		doc, err := p.document(ctx, asset, metrics, score, &dbg, al)
		if err != nil {
			al.Warn("welcome asset has no narrative", applogger.Error(err))
			errs = append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}

	if len(scores) == 0 {
		err := fmt.Errorf("welcome report: every asset failed: %w", errors.Join(errs...))
		dbg.Error = err.Error()
		dbg.DurationMs = p.now().Sub(start).Milliseconds()
		p.recordRun("welcome", "failed")
		l.Error("welcome run failed", applogger.Error(err))
		return models.RunResult{Debug: dbg}, err
	}

	res := models.RunResult{Success: true, Score: &scores[0]}
	pdf, tailErr := w.deliver(ctx, email, docs, &dbg)
	res.PDF = pdf
	if tailErr == nil && len(errs) > 0 {
		tailErr = errors.Join(errs...)
	}
	if tailErr != nil {
		res.Partial = true
		dbg.Error = tailErr.Error()
		l.Warn("welcome run partial", applogger.String("stage", string(dbg.Stage)), applogger.Error(tailErr))
	} else {
		dbg.Stage = models.StageDone
	}
	dbg.DurationMs = p.now().Sub(start).Milliseconds()
	res.Debug = dbg

	outcome := "success"
	if res.Partial {
		outcome = "partial"
	}
	p.recordRun("welcome", outcome)
	for _, s := range scores {
		p.publish(ctx, "welcome.completed", s.AssetSlug, s, res.Partial, 1, dbg.RunID, l)
	}
	l.Info("welcome run finished",
		applogger.String("outcome", outcome),
		applogger.Int("documented", len(docs)),
		applogger.Int64("duration_ms", dbg.DurationMs))
	return res, nil
}

func (w *WelcomeReport) deliver(ctx context.Context, email string, docs []models.ReportDocument, dbg *models.RunDebug) ([]byte, error) {
	p := w.pipeline
	if len(docs) == 0 {
		return nil, fmt.Errorf("narrate: %w", repository.ErrNoNarratives)
	}

	doc := models.WelcomeDocument{Recipient: email, Assets: docs, GeneratedAt: p.now().UTC()}
	dbg.Stage = models.StageCompose
	t := p.now()
	pdf, err := p.Composer.ComposeWelcome(ctx, doc)
	p.observe(models.StageCompose, t)
	if err != nil {
		p.recordError(models.StageCompose)
		return nil, fmt.Errorf("compose welcome: %w", err)
	}
	dbg.PDFBytes = len(pdf)

	dbg.Stage = models.StageDispatch
	t = p.now()
	err = p.Mailer.SendWelcomeReport(ctx, email, doc, pdf)
	p.observe(models.StageDispatch, t)
	if err != nil {
		p.recordError(models.StageDispatch)
		return pdf, fmt.Errorf("dispatch welcome: %w", err)
	}
	return pdf, nil
}

// Enqueue validates the request, tells the recipient their report is being
// prepared and hands the run to the queue. It returns the job id.
func (w *WelcomeReport) Enqueue(ctx context.Context, userID string, slugs []string) (string, error) {
	email, assets, err := w.resolve(ctx, userID, slugs)
	if err != nil {
		return "", err
	}

	if err := w.pipeline.Mailer.SendProcessingNotice(ctx, []string{email}, assets); err != nil {
		w.pipeline.recordError("notice")
		w.l.Warn("processing notice failed", applogger.String("user_id", userID), applogger.Error(err))
	}

	payload := WelcomeJobPayload{UserID: userID, AssetSlugs: slugs}
	if w.queue != nil {
		id, err := w.queue.EnqueueWithID(ctx, JobTypeWelcome, payload)
		if err != nil {
			return "", fmt.Errorf("enqueue welcome report: %w", err)
		}
		w.l.Info("welcome report queued", applogger.String("job_id", id), applogger.String("user_id", userID))
		return id, nil
	}

	id := uuid.NewString()
	go func() {
		runCtx, cancel := withOptionalTimeout(context.WithoutCancel(ctx), w.timeout)
		defer cancel()
		if _, err := w.Run(runCtx, userID, slugs); err != nil {
			w.l.Error("background welcome report failed", applogger.String("job_id", id), applogger.Error(err))
		}
	}()
	return id, nil
}

func (w *WelcomeReport) resolve(ctx context.Context, userID string, slugs []string) (string, []models.Asset, error) {
	email, err := w.dir.FindRecipient(ctx, userID)
	if err != nil {
		return "", nil, fmt.Errorf("resolve recipient %s: %w", userID, err)
	}
	assets, err := w.dir.FindAssets(ctx, slugs)
	if err != nil {
		return "", nil, fmt.Errorf("resolve assets: %w", err)
	}
	if len(assets) == 0 {
		return "", nil, fmt.Errorf("resolve assets: %w", repository.ErrAssetNotFound)
	}
	return email, assets, nil
}
