package service

import (
	"context"

	"CoinPulse/internal/domain/models"
)

// TextModel is a single-shot text completion backend.
type TextModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type NarrativeGenerator interface {
	GenerateAll(ctx context.Context, metrics map[string]models.ProcessedMetric, catalog []models.MetricSpec, asset models.Asset) []models.Analysis
	GenerateOverallSummary(ctx context.Context, analyses []models.Analysis, asset models.Asset) (string, error)
}

type ChartRenderer interface {
	Render(points []models.ChartPoint, title, color string) ([]byte, error)
}

type DocumentComposer interface {
	Compose(ctx context.Context, doc models.ReportDocument) ([]byte, error)
	ComposeWelcome(ctx context.Context, doc models.WelcomeDocument) ([]byte, error)
}

type Mailer interface {
	SendReport(ctx context.Context, to []string, doc models.ReportDocument, pdf []byte) error
	SendWelcomeReport(ctx context.Context, to string, doc models.WelcomeDocument, pdf []byte) error
	SendProcessingNotice(ctx context.Context, to []string, assets []models.Asset) error
}
