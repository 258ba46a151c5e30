package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"CoinPulse/internal/domain/models"
	"CoinPulse/internal/domain/repository"
	pkgch "CoinPulse/pkg/clickhouse"
	applogger "CoinPulse/pkg/logger"
)

// insertChunk bounds the rows of one multi-row INSERT.
const insertChunk = 2000

// MetricSchema returns the DDL for the metric table. ReplacingMergeTree keyed
// on (asset, metric, datetime) makes repeated syncs of the same point
// idempotent once parts merge; reads use FINAL.
func MetricSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	asset_slug LowCardinality(String),
	metric_type LowCardinality(String),
	datetime DateTime64(3, 'UTC'),
	value Nullable(Float64),
	open Nullable(Float64),
	high Nullable(Float64),
	low Nullable(Float64),
	close Nullable(Float64),
	inserted_at DateTime64(3, 'UTC') DEFAULT now64(3)
) ENGINE = ReplacingMergeTree(inserted_at)
PARTITION BY toYYYYMM(datetime)
ORDER BY (asset_slug, metric_type, datetime)`, database, table),
	}
}

// ClickHouseMetricStore reads and writes metric records.
type ClickHouseMetricStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var (
	_ repository.MetricStore  = (*ClickHouseMetricStore)(nil)
	_ repository.MetricWriter = (*ClickHouseMetricStore)(nil)
)

func NewClickHouseMetricStore(ch *pkgch.Client, table string) *ClickHouseMetricStore {
	return &ClickHouseMetricStore{db: ch.DB(), table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseMetricStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *ClickHouseMetricStore) FetchRecords(ctx context.Context, assetSlug string, metricTypes []string, from, to time.Time) ([]models.MetricRecord, error) {
	q, args := fetchQuery(s.table, assetSlug, metricTypes, from, to)
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse fetch_records query error",
			applogger.String("table", s.table),
			applogger.String("asset", assetSlug),
			applogger.Error(err))
		return nil, fmt.Errorf("query metric records: %w", err)
	}
	defer rows.Close()

	var out []models.MetricRecord
	for rows.Next() {
		var (
			r                          models.MetricRecord
			value, open, high, low, cl sql.NullFloat64
		)
		if err := rows.Scan(&r.AssetSlug, &r.MetricType, &r.Datetime, &value, &open, &high, &low, &cl); err != nil {
			return nil, fmt.Errorf("scan metric record: %w", err)
		}
		r.Datetime = r.Datetime.UTC()
		r.Value = nullable(value)
		r.Open = nullable(open)
		r.High = nullable(high)
		r.Low = nullable(low)
		r.Close = nullable(cl)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric records: %w", err)
	}
	s.l.Debug("clickhouse fetch_records ok",
		applogger.String("asset", assetSlug),
		applogger.Int("rows", len(out)),
		applogger.Duration("elapsed_ms", time.Since(start)))
	return out, nil
}

// StoreBatch inserts records in chunks. Records without an asset, a metric
// type or a timestamp are dropped.
func (s *ClickHouseMetricStore) StoreBatch(ctx context.Context, records []models.MetricRecord) error {
	for start := 0; start < len(records); start += insertChunk {
		end := start + insertChunk
		if end > len(records) {
			end = len(records)
		}
		q, args := insertQuery(s.table, records[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_batch insert error",
				applogger.String("table", s.table),
				applogger.Int("rows", end-start),
				applogger.Error(err))
			return fmt.Errorf("insert metric records: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseMetricStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func fetchQuery(table, assetSlug string, metricTypes []string, from, to time.Time) (string, []interface{}) {
	args := make([]interface{}, 0, len(metricTypes)+3)
	args = append(args, assetSlug)
	q := fmt.Sprintf("SELECT asset_slug, metric_type, datetime, value, open, high, low, close FROM %s FINAL WHERE asset_slug = ?", table)
	if len(metricTypes) > 0 {
		marks := make([]string, len(metricTypes))
		for i, mt := range metricTypes {
			marks[i] = "?"
			args = append(args, mt)
		}
		q += " AND metric_type IN (" + strings.Join(marks, ", ") + ")"
	}
	q += " AND datetime >= ? AND datetime <= ? ORDER BY metric_type, datetime"
	args = append(args, from.UTC(), to.UTC())
	return q, args
}

func insertQuery(table string, records []models.MetricRecord) (string, []interface{}) {
	values := make([]string, 0, len(records))
	args := make([]interface{}, 0, len(records)*8)
	for _, r := range records {
		if r.AssetSlug == "" || r.MetricType == "" || r.Datetime.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, r.AssetSlug, r.MetricType, r.Datetime.UTC(),
			deref(r.Value), deref(r.Open), deref(r.High), deref(r.Low), deref(r.Close))
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (asset_slug, metric_type, datetime, value, open, high, low, close) VALUES %s",
		table, strings.Join(values, ", "))
	return q, args
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// deref returns nil for a nil pointer so the driver writes NULL.
func deref(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
