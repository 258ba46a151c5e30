package processor

import (
	"math"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC) // Wednesday

func f(v float64) *float64 { return &v }

func rec(metric string, at time.Time, v float64) models.MetricRecord {
	return models.MetricRecord{AssetSlug: "bitcoin", MetricType: metric, Datetime: at, Value: f(v)}
}

func candle(metric string, at time.Time, o, h, l, c float64) models.MetricRecord {
	return models.MetricRecord{AssetSlug: "bitcoin", MetricType: metric, Datetime: at, Open: f(o), High: f(h), Low: f(l), Close: f(c)}
}

func TestProcessEmptyInput(t *testing.T) {
	p := New(nil)

	got := p.Process(nil, "price_usd")

	require.NotNil(t, got.Data)
	assert.Empty(t, got.Data)
	assert.Zero(t, got.CurrentValue)
	assert.Zero(t, got.PercentChange24h)
	assert.True(t, got.Empty())
}

func TestProcessWeeklyBucketsKeepLastValue(t *testing.T) {
	p := New(nil)
	week := 7 * 24 * time.Hour
	records := []models.MetricRecord{
		rec("price_usd", base.Add(-2*week), 10),
		rec("price_usd", base.Add(-2*week).Add(24*time.Hour), 11),
		rec("price_usd", base.Add(-week), 20),
		rec("price_usd", base.Add(-week).Add(48*time.Hour), 22),
		rec("price_usd", base, 30),
		rec("price_usd", base.Add(24*time.Hour), 33),
	}

	got := p.Process(records, "price_usd")

	require.Len(t, got.Data, 3)
	assert.Equal(t, 11.0, got.Data[0].Value)
	assert.Equal(t, 22.0, got.Data[1].Value)
	assert.Equal(t, 33.0, got.Data[2].Value)
	assert.True(t, got.Data[2].Date.Equal(base.Add(24*time.Hour)))
	assert.Equal(t, 33.0, got.CurrentValue)
}

func TestProcessSortsUnorderedInput(t *testing.T) {
	p := New(nil)
	records := []models.MetricRecord{
		rec("price_usd", base, 120),
		rec("price_usd", base.Add(-24*time.Hour), 100),
		rec("price_usd", base.Add(-48*time.Hour), 80),
	}

	got := p.Process(records, "price_usd")

	assert.Equal(t, 120.0, got.CurrentValue)
	assert.InDelta(t, 20.0, got.PercentChange24h, 1e-9)
}

func TestPercentChange24h(t *testing.T) {
	tests := []struct {
		name    string
		records []models.MetricRecord
		want    float64
	}{
		{
			name: "reference inside the 20-30h window",
			records: []models.MetricRecord{
				rec("m", base.Add(-48*time.Hour), 100),
				rec("m", base.Add(-24*time.Hour), 50),
				rec("m", base.Add(-2*time.Hour), 70),
				rec("m", base, 60),
			},
			want: 20,
		},
		{
			name: "window edges are inclusive",
			records: []models.MetricRecord{
				rec("m", base.Add(-30*time.Hour), 200),
				rec("m", base, 100),
			},
			want: -50,
		},
		{
			name: "nothing in window falls back to second most recent",
			records: []models.MetricRecord{
				rec("m", base.Add(-40*time.Hour), 100),
				rec("m", base.Add(-10*time.Hour), 80),
				rec("m", base, 90),
			},
			want: 12.5,
		},
		{
			name: "single record has no change",
			records: []models.MetricRecord{
				rec("m", base, 90),
			},
			want: 0,
		},
		{
			name: "zero reference yields zero",
			records: []models.MetricRecord{
				rec("m", base.Add(-24*time.Hour), 0),
				rec("m", base, 90),
			},
			want: 0,
		},
		{
			name: "negative reference divides by signed value",
			records: []models.MetricRecord{
				rec("m", base.Add(-24*time.Hour), -100),
				rec("m", base, -50),
			},
			want: -50,
		},
	}

	p := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Process(tt.records, "m")
			assert.False(t, math.IsNaN(got.PercentChange24h))
			assert.False(t, math.IsInf(got.PercentChange24h, 0))
			assert.InDelta(t, tt.want, got.PercentChange24h, 1e-9)
		})
	}
}

func TestProcessSkipsInvalidRecords(t *testing.T) {
	p := New(nil)
	records := []models.MetricRecord{
		rec("price_usd", base.Add(-24*time.Hour), 100),
		{AssetSlug: "bitcoin", MetricType: "price_usd", Value: f(5)},
		{AssetSlug: "bitcoin", MetricType: "price_usd", Datetime: base.Add(-time.Hour)},
		rec("price_usd", base.Add(-30*time.Minute), math.NaN()),
		rec("price_usd", base.Add(-20*time.Minute), math.Inf(1)),
		rec("volume_usd", base, 999),
		rec("price_usd", base, 110),
	}

	got := p.Process(records, "price_usd")

	assert.Equal(t, 110.0, got.CurrentValue)
	assert.InDelta(t, 10.0, got.PercentChange24h, 1e-9)
	require.Len(t, got.Data, 1)
}

func TestProcessOHLC(t *testing.T) {
	p := New(nil)
	week := 7 * 24 * time.Hour
	records := []models.MetricRecord{
		candle("price_usd_ohlc", base.Add(-week), 1, 2, 0.5, 1.5),
		candle("price_usd_ohlc", base, 10, 12, 9, 11),
		candle("price_usd_ohlc", base.Add(24*time.Hour), 11, 14, 10, 13),
		{AssetSlug: "bitcoin", MetricType: "price_usd_ohlc", Datetime: base.Add(36 * time.Hour), Open: f(1)},
	}

	got := p.ProcessOHLC(records, "price_usd_ohlc")

	assert.True(t, got.IsOHLC)
	require.Len(t, got.OHLC, 2)
	assert.Equal(t, 13.0, got.OHLC[1].Close)
	assert.Equal(t, 14.0, got.OHLC[1].High)
	require.Len(t, got.Data, 2)
	assert.Equal(t, 1.5, got.Data[0].Value)
	assert.Equal(t, 13.0, got.CurrentValue)
	assert.Zero(t, got.PercentChange24h)
}

func TestProcessCatalogUsesFirstAlternateWithData(t *testing.T) {
	p := New(nil)
	catalog := []models.MetricSpec{
		{Name: "price", Alternates: []string{"price_usd", "price_usd_5m", "daily_closing_price_usd"}},
		{Name: "volume", Alternates: []string{"volume_usd"}},
		{Name: "ohlc", Alternates: []string{"price_usd_ohlc"}, OHLC: true},
	}
	records := []models.MetricRecord{
		{AssetSlug: "bitcoin", MetricType: "price_usd", Datetime: base},
		rec("price_usd_5m", base.Add(-24*time.Hour), 100),
		rec("price_usd_5m", base, 105),
		rec("daily_closing_price_usd", base, 1),
	}

	got := p.ProcessCatalog(records, catalog)

	require.Len(t, got, 3)
	assert.Equal(t, "price_usd_5m", got["price"].MetricType)
	assert.InDelta(t, 5.0, got["price"].PercentChange24h, 1e-9)
	assert.True(t, got["volume"].Empty())
	assert.Equal(t, "volume_usd", got["volume"].MetricType)
	assert.True(t, got["ohlc"].IsOHLC)
	assert.True(t, got["ohlc"].Empty())
}

func TestHasMeaningfulData(t *testing.T) {
	pts := func(vs ...float64) []models.ChartPoint {
		out := make([]models.ChartPoint, len(vs))
		for i, v := range vs {
			out[i] = models.ChartPoint{Date: base.Add(time.Duration(i) * 7 * 24 * time.Hour), Value: v}
		}
		return out
	}

	tests := []struct {
		name string
		pm   models.ProcessedMetric
		want bool
	}{
		{"all zero", models.ProcessedMetric{Data: pts(0, 0, 0), CurrentValue: 0}, false},
		{"current below epsilon", models.ProcessedMetric{Data: pts(1, 2, 1e-12), CurrentValue: 1e-12}, false},
		{"single point", models.ProcessedMetric{Data: pts(5), CurrentValue: 5}, false},
		{"one non-zero point", models.ProcessedMetric{Data: pts(0, 5), CurrentValue: 5}, false},
		{"two non-zero points", models.ProcessedMetric{Data: pts(0, 4, 5), CurrentValue: 5}, true},
		{"negative values count", models.ProcessedMetric{Data: pts(-3, -2), CurrentValue: -2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMeaningfulData(tt.pm))
		})
	}
}
