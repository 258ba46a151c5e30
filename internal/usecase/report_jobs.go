package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/queue"
)

const (
	JobTypeReport  = "report.generate"
	JobTypeWelcome = "report.welcome"
)

// ReportJobPayload is the queued form of a scheduled asset report.
type ReportJobPayload struct {
	Asset      models.Asset `json:"asset"`
	Recipients []string     `json:"recipients"`
}

// WelcomeJobPayload is the queued form of an async welcome report.
type WelcomeJobPayload struct {
	UserID     string   `json:"user_id"`
	AssetSlugs []string `json:"asset_slugs"`
}

// ReportJob runs the report pipeline for a queued asset.
type ReportJob struct {
	pipeline *ReportPipeline
	timeout  time.Duration
}

var (
	_ queue.Job = (*ReportJob)(nil)
	_ queue.Job = (*WelcomeJob)(nil)
)

func NewReportJob(p *ReportPipeline, timeout time.Duration) *ReportJob {
	return &ReportJob{pipeline: p, timeout: timeout}
}

func (j *ReportJob) Name() string { return "report_generate" }
func (j *ReportJob) Type() string { return JobTypeReport }

func (j *ReportJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ReportJobPayload](payload)
	if err != nil {
		return fmt.Errorf("report job payload: %w", err)
	}
	ctx, cancel := withOptionalTimeout(ctx, j.timeout)
	defer cancel()

	_, err = j.pipeline.Run(ctx, ReportRequest{Asset: p.Asset, Recipients: p.Recipients})
	return err
}

// WelcomeJob runs a welcome report accepted in async mode.
type WelcomeJob struct {
	welcome *WelcomeReport
	timeout time.Duration
}

func NewWelcomeJob(w *WelcomeReport, timeout time.Duration) *WelcomeJob {
	return &WelcomeJob{welcome: w, timeout: timeout}
}

func (j *WelcomeJob) Name() string { return "report_welcome" }
func (j *WelcomeJob) Type() string { return JobTypeWelcome }

func (j *WelcomeJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[WelcomeJobPayload](payload)
	if err != nil {
		return fmt.Errorf("welcome job payload: %w", err)
	}
	ctx, cancel := withOptionalTimeout(ctx, j.timeout)
	defer cancel()

	_, err = j.welcome.Run(ctx, p.UserID, p.AssetSlugs)
	return err
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
