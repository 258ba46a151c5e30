package repository

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
)

// MetricStore reads raw metric records for report runs.
type MetricStore interface {
	FetchRecords(ctx context.Context, assetSlug string, metricTypes []string, from, to time.Time) ([]models.MetricRecord, error)
}

// MetricWriter persists synced metric records.
type MetricWriter interface {
	StoreBatch(ctx context.Context, records []models.MetricRecord) error
}

// ScoreRepository is the append-only score history.
type ScoreRepository interface {
	Append(ctx context.Context, score *models.AggregateScore) error
	History(ctx context.Context, assetSlug string, limit int) ([]models.AggregateScore, error)
}

// Directory resolves assets, recipients and subscriptions.
type Directory interface {
	FindAssets(ctx context.Context, slugs []string) ([]models.Asset, error)
	FindRecipient(ctx context.Context, userID string) (string, error)
	ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	PublishReportEvent(ctx context.Context, ev models.ReportEvent) error
}

type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordRun(kind, outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordAggregateScore(assetSlug string, normalized float64)
	RecordIngested(source string, n int)
}
