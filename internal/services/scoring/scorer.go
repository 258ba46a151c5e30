package scoring

import (
	"math"
	"time"

	"CoinPulse/internal/domain/models"
)

// Threshold is the absolute 24h percent change a metric must exceed to vote.
const Threshold = 2.0

// MetricScoreFor maps a 24h percent change to a vote. The threshold itself
// is neutral.
func MetricScoreFor(change float64) models.MetricScore {
	switch {
	case change > Threshold:
		return models.ScoreBullish
	case change < -Threshold:
		return models.ScoreBearish
	default:
		return models.ScoreNeutral
	}
}

// Score sums the votes of every non-OHLC metric. Metrics without data still
// count toward MetricCount and vote neutral.
func Score(assetSlug string, metrics map[string]models.ProcessedMetric, at time.Time) models.AggregateScore {
	out := models.AggregateScore{
		AssetSlug:        assetSlug,
		IndividualScores: make(map[string]models.MetricScore, len(metrics)),
		AnalysisDate:     at.UTC(),
	}
	for name, pm := range metrics {
		if pm.IsOHLC {
			continue
		}
		s := MetricScoreFor(pm.PercentChange24h)
		out.IndividualScores[name] = s
		out.AggregateScore += int(s)
		out.MetricCount++
	}
	out.NormalizedScore = Normalize(out.AggregateScore, out.MetricCount)
	return out
}

// Normalize scales an aggregate to [-100, 100].
func Normalize(aggregate, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(aggregate) / float64(count) * 100))
}

var bands = []struct {
	min       int
	inclusive bool
	band      models.ScoreBand
}{
	{60, true, models.ScoreBand{Label: "Extremely Bullish", Color: "#15803d"}},
	{30, true, models.ScoreBand{Label: "Bullish", Color: "#22c55e"}},
	{10, true, models.ScoreBand{Label: "Slightly Bullish", Color: "#86efac"}},
	{-10, false, models.ScoreBand{Label: "Neutral", Color: "#9ca3af"}},
	{-30, false, models.ScoreBand{Label: "Slightly Bearish", Color: "#fca5a5"}},
	{-60, false, models.ScoreBand{Label: "Bearish", Color: "#ef4444"}},
}

var extremelyBearish = models.ScoreBand{Label: "Extremely Bearish", Color: "#b91c1c"}

// Band places a normalized score on the fixed seven-step display scale.
func Band(normalized int) models.ScoreBand {
	for _, b := range bands {
		if normalized > b.min || (b.inclusive && normalized == b.min) {
			return b.band
		}
	}
	return extremelyBearish
}
