package repository

import (
	"context"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
)

// producer is the part of pkg/kafka.Producer the publishers use.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaPublisher publishes report events, ingest records and log batches.
type KafkaPublisher struct {
	producer producer
	topic    string
}

var (
	_ repository.EventPublisher = (*KafkaPublisher)(nil)
	_ applogger.Publisher       = (*KafkaPublisher)(nil)
)

// NewKafkaPublisher creates a publisher whose events go to topic.
func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

// PublishReportEvent is keyed by asset so events of one asset stay ordered.
func (p *KafkaPublisher) PublishReportEvent(ctx context.Context, ev models.ReportEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.AssetSlug), ev)
}

// PublishRecords writes metric records onto an ingest topic, one message per
// record keyed by asset.
func (p *KafkaPublisher) PublishRecords(ctx context.Context, topic string, records []models.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{Key: []byte(r.AssetSlug), Value: r}
	}
	return p.producer.PublishBatch(ctx, topic, msgs)
}

// PublishMessage lets the log collector ship batches through the same producer.
func (p *KafkaPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}
