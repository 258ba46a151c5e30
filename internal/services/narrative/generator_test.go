package narrative

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu       sync.Mutex
	prompts  []string
	failOn   string
	reply    string
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (m *fakeModel) Complete(_ context.Context, _ string, prompt string) (string, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.failOn != "" && strings.Contains(prompt, m.failOn) {
		return "", errors.New("quota exceeded")
	}
	if m.reply != "" {
		return m.reply, nil
	}
	return "## Reading:\n**Strong** accumulation continues.", nil
}

var btc = models.Asset{Slug: "bitcoin", Name: "Bitcoin", Symbol: "btc"}

func series(vs ...float64) models.ProcessedMetric {
	pm := models.ProcessedMetric{Data: make([]models.ChartPoint, len(vs))}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range vs {
		pm.Data[i] = models.ChartPoint{Date: start.Add(time.Duration(i) * 7 * 24 * time.Hour), Value: v}
	}
	if len(vs) > 0 {
		pm.CurrentValue = vs[len(vs)-1]
	}
	pm.PercentChange24h = 3.5
	return pm
}

func catalog() []models.MetricSpec {
	return []models.MetricSpec{
		{Name: "price", Title: "Price"},
		{Name: "volume", Title: "Trading Volume"},
		{Name: "sentiment", Title: "Social Sentiment"},
		{Name: "mvrv", Title: "MVRV Ratio"},
	}
}

func TestGenerateAllSkipsIneligibleAndKeepsOrder(t *testing.T) {
	model := &fakeModel{}
	g := NewGenerator(model, 1, nil)

	metrics := map[string]models.ProcessedMetric{
		"price":     series(100, 110, 120),
		"volume":    series(0, 0, 0),
		"sentiment": series(0, 5),
		"mvrv":      series(1.2, 1.4),
	}

	got := g.GenerateAll(context.Background(), metrics, catalog(), btc)

	require.Len(t, got, 2)
	assert.Equal(t, "price", got[0].Metric)
	assert.Equal(t, "mvrv", got[1].Metric)
	assert.Equal(t, "MVRV Ratio", got[1].Title)
	assert.Equal(t, "Reading:\nStrong accumulation continues.", got[0].Content)
	assert.Len(t, model.prompts, 2)
}

func TestGenerateAllIsolatesFailures(t *testing.T) {
	for _, workers := range []int{1, 4} {
		model := &fakeModel{failOn: "Trading Volume"}
		g := NewGenerator(model, workers, nil)
		metrics := map[string]models.ProcessedMetric{
			"price":     series(1, 2),
			"volume":    series(3, 4),
			"sentiment": series(5, 6),
			"mvrv":      series(7, 8),
		}

		got := g.GenerateAll(context.Background(), metrics, catalog(), btc)

		require.Len(t, got, 3, "workers=%d", workers)
		assert.Equal(t, []string{"price", "sentiment", "mvrv"},
			[]string{got[0].Metric, got[1].Metric, got[2].Metric})
	}
}

func TestGenerateAllRespectsConcurrencyBound(t *testing.T) {
	model := &fakeModel{delay: 20 * time.Millisecond}
	g := NewGenerator(model, 2, nil)
	metrics := map[string]models.ProcessedMetric{
		"price":     series(1, 2),
		"volume":    series(3, 4),
		"sentiment": series(5, 6),
		"mvrv":      series(7, 8),
	}

	got := g.GenerateAll(context.Background(), metrics, catalog(), btc)

	assert.Len(t, got, 4)
	assert.LessOrEqual(t, atomic.LoadInt32(&model.peak), int32(2))
}

func TestGenerateRejectsEmptyCompletion(t *testing.T) {
	g := NewGenerator(&fakeModel{reply: "***\n##"}, 1, nil)

	_, err := g.Generate(context.Background(), models.MetricSpec{Name: "price"}, series(1, 2), btc)

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestMetricPromptIncludesFigures(t *testing.T) {
	pm := series(1000, 2500)
	p := metricPrompt(models.MetricSpec{Name: "price", Title: "Price"}, pm, btc)

	assert.Contains(t, p, "Bitcoin (BTC)")
	assert.Contains(t, p, "Current value: 2.5K")
	assert.Contains(t, p, "24h change: +3.50%")
}

func TestMetricPromptOHLC(t *testing.T) {
	pm := models.ProcessedMetric{
		IsOHLC:       true,
		CurrentValue: 64000,
		OHLC: []models.OHLCPoint{{
			Date: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
			Open: 60000, High: 66000, Low: 59000, Close: 64000,
		}},
	}
	p := metricPrompt(models.MetricSpec{Name: "ohlc", Title: "Price OHLC"}, pm, btc)

	assert.Contains(t, p, "open 60K, high 66K, low 59K, close 64K")
	assert.NotContains(t, p, "24h change")
}

func TestGenerateOverallSummary(t *testing.T) {
	model := &fakeModel{reply: "# Summary\nBitcoin looks *constructive*."}
	g := NewGenerator(model, 1, nil)

	s, err := g.GenerateOverallSummary(context.Background(), []models.Analysis{{Title: "Price", Content: "Up."}}, btc)

	require.NoError(t, err)
	assert.Equal(t, "Summary\nBitcoin looks constructive.", s)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "Price:\nUp.")

	_, err = g.GenerateOverallSummary(context.Background(), nil, btc)
	assert.Error(t, err)
}

func TestFallbackSummary(t *testing.T) {
	score := models.AggregateScore{
		NormalizedScore: 33,
		MetricCount:     3,
		IndividualScores: map[string]models.MetricScore{
			"price": models.ScoreBullish, "volume": models.ScoreNeutral, "mvrv": models.ScoreNeutral,
		},
	}
	s := FallbackSummary(btc, score, models.ScoreBand{Label: "Bullish"}, 2)

	assert.Contains(t, s, "Bitcoin (BTC) scores 33")
	assert.Contains(t, s, "Bullish")
	assert.Contains(t, s, "1 of 3")
}
