package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	pkgkafka "CoinPulse/pkg/kafka"
	applogger "CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

// ingestMessage is the wire form of a synced metric point. Numbers may
// arrive as JSON numbers or numeric strings; datetime as RFC 3339, a date,
// or a unix timestamp.
type ingestMessage struct {
	AssetSlug  string          `json:"asset_slug"`
	MetricType string          `json:"metric_type"`
	Datetime   json.RawMessage `json:"datetime"`
	Value      json.RawMessage `json:"value"`
	Open       json.RawMessage `json:"open"`
	High       json.RawMessage `json:"high"`
	Low        json.RawMessage `json:"low"`
	Close      json.RawMessage `json:"close"`
}

// MetricsIngestHandler consumes metric sync messages and writes them to the
// metric store.
type MetricsIngestHandler struct {
	topic   string
	writer  domrepo.MetricWriter
	metrics domrepo.Metrics
	l       *applogger.Logger
}

var _ pkgkafka.MessageHandler = (*MetricsIngestHandler)(nil)

func NewMetricsIngestHandler(topic string, writer domrepo.MetricWriter, metrics domrepo.Metrics, l *applogger.Logger) *MetricsIngestHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &MetricsIngestHandler{topic: topic, writer: writer, metrics: metrics, l: l}
}

func (h *MetricsIngestHandler) Topic() string { return h.topic }

// Handle accepts one message object or an array of them. Points with an
// unparseable datetime or without asset and metric type are dropped.
func (h *MetricsIngestHandler) Handle(ctx context.Context, b []byte) error {
	msgs, err := decodeIngest(b)
	if err != nil {
		h.recordError("ingest_unmarshal")
		return err
	}

	records := make([]models.MetricRecord, 0, len(msgs))
	var dropped int
	for _, m := range msgs {
		r, ok := m.record()
		if !ok {
			dropped++
			continue
		}
		records = append(records, r)
	}
	if dropped > 0 {
		h.l.Warn("dropped invalid metric points",
			applogger.String("topic", h.topic),
			applogger.Int("dropped", dropped),
			applogger.Int("received", len(msgs)))
	}
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	err = h.writer.StoreBatch(ctx, records)
	if h.metrics != nil {
		h.metrics.RecordLatency("ingest_store", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("ingest_store")
		return fmt.Errorf("store %d metric records: %w", len(records), err)
	}
	if h.metrics != nil {
		h.metrics.RecordIngested("kafka", len(records))
	}
	return nil
}

func (h *MetricsIngestHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

func decodeIngest(b []byte) ([]ingestMessage, error) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var msgs []ingestMessage
		if err := json.Unmarshal(b, &msgs); err != nil {
			return nil, fmt.Errorf("decode metric batch: %w", err)
		}
		return msgs, nil
	}
	var m ingestMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metric point: %w", err)
	}
	return []ingestMessage{m}, nil
}

func (m ingestMessage) record() (models.MetricRecord, bool) {
	if m.AssetSlug == "" || m.MetricType == "" {
		return models.MetricRecord{}, false
	}
	at, ok := util.ParseTime(rawString(m.Datetime))
	if !ok {
		return models.MetricRecord{}, false
	}
	return models.MetricRecord{
		AssetSlug:  strings.ToLower(m.AssetSlug),
		MetricType: m.MetricType,
		Datetime:   at,
		Value:      rawNumber(m.Value),
		Open:       rawNumber(m.Open),
		High:       rawNumber(m.High),
		Low:        rawNumber(m.Low),
		Close:      rawNumber(m.Close),
	}, true
}

// rawString unquotes a JSON string and passes numbers through as text.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// rawNumber returns nil for null, missing or non-numeric values.
func rawNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	s := rawString(raw)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
