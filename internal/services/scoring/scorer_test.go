package scoring

import (
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestMetricScoreFor(t *testing.T) {
	tests := []struct {
		change float64
		want   models.MetricScore
	}{
		{2.01, models.ScoreBullish},
		{2.0, models.ScoreNeutral},
		{0, models.ScoreNeutral},
		{-2.0, models.ScoreNeutral},
		{-2.01, models.ScoreBearish},
		{150, models.ScoreBullish},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MetricScoreFor(tt.change), "change %v", tt.change)
	}
}

func TestScoreMixedMetricsCancelOut(t *testing.T) {
	metrics := map[string]models.ProcessedMetric{
		"price":  {PercentChange24h: 5},
		"volume": {PercentChange24h: -3},
		"rsi":    {PercentChange24h: 0.5},
	}
	at := time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC)

	got := Score("bitcoin", metrics, at)

	assert.Equal(t, "bitcoin", got.AssetSlug)
	assert.Equal(t, 0, got.AggregateScore)
	assert.Equal(t, 3, got.MetricCount)
	assert.Equal(t, 0, got.NormalizedScore)
	assert.Equal(t, at, got.AnalysisDate)
	assert.Equal(t, map[string]models.MetricScore{
		"price":  models.ScoreBullish,
		"volume": models.ScoreBearish,
		"rsi":    models.ScoreNeutral,
	}, got.IndividualScores)
}

func TestScoreCountsEmptyMetricsAndSkipsOHLC(t *testing.T) {
	metrics := map[string]models.ProcessedMetric{
		"price":     {PercentChange24h: 4, Data: []models.ChartPoint{{Value: 1}}},
		"mvrv":      {PercentChange24h: 3},
		"sentiment": {Data: []models.ChartPoint{}},
		"ohlc":      {IsOHLC: true, PercentChange24h: -50},
	}

	got := Score("ethereum", metrics, time.Now())

	assert.Equal(t, 2, got.AggregateScore)
	assert.Equal(t, 3, got.MetricCount)
	assert.Equal(t, 67, got.NormalizedScore)
	assert.NotContains(t, got.IndividualScores, "ohlc")
	assert.Equal(t, models.ScoreNeutral, got.IndividualScores["sentiment"])
}

func TestScoreNoMetrics(t *testing.T) {
	got := Score("bitcoin", nil, time.Now())

	assert.Zero(t, got.AggregateScore)
	assert.Zero(t, got.MetricCount)
	assert.Zero(t, got.NormalizedScore)
	assert.NotNil(t, got.IndividualScores)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0, Normalize(0, 0))
	assert.Equal(t, 100, Normalize(14, 14))
	assert.Equal(t, -33, Normalize(-1, 3))
	assert.Equal(t, 50, Normalize(7, 14))
}

func TestBand(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{100, "Extremely Bullish"},
		{60, "Extremely Bullish"},
		{59, "Bullish"},
		{30, "Bullish"},
		{10, "Slightly Bullish"},
		{9, "Neutral"},
		{-9, "Neutral"},
		{-10, "Slightly Bearish"},
		{-30, "Bearish"},
		{-59, "Bearish"},
		{-60, "Extremely Bearish"},
		{-100, "Extremely Bearish"},
	}
	for _, tt := range tests {
		b := Band(tt.score)
		assert.Equal(t, tt.want, b.Label, "score %d", tt.score)
		assert.NotEmpty(t, b.Color)
	}
}
