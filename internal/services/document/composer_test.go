package document

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() models.ReportDocument {
	return models.ReportDocument{
		Asset:   models.Asset{Slug: "bitcoin", Name: "Bitcoin", Symbol: "btc"},
		Summary: "Momentum improved.\n\nOn-chain activity is steady.",
		Score:   models.AggregateScore{AssetSlug: "bitcoin", AggregateScore: 5, NormalizedScore: 36, MetricCount: 14},
		Band:    models.ScoreBand{Label: "Bullish", Color: "#22c55e"},
		Sections: []models.ReportSection{{
			Analysis: models.Analysis{
				Metric:  "price",
				Title:   "Price",
				Content: "Current Reading:\nPrice is above its 20 week average.\nOUTLOOK\n1. Expect consolidation.",
				Data:    models.ProcessedMetric{CurrentValue: 64250, PercentChange24h: 3.2},
			},
			Chart: []byte{0x89, 'P', 'N', 'G'},
		}},
		GeneratedAt: time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC),
	}
}

func TestRenderHTML(t *testing.T) {
	c := NewComposer(nil, "https://app.example.com")

	html, err := c.RenderHTML(sampleDoc())
	require.NoError(t, err)

	assert.Contains(t, html, "<h1>Bitcoin</h1>")
	assert.Contains(t, html, "BTC")
	assert.Contains(t, html, ">36<")
	assert.Contains(t, html, "Bullish")
	assert.Contains(t, html, "background: #22c55e")
	assert.Contains(t, html, "<p>Momentum improved.</p>")
	assert.Contains(t, html, "<h3>Current Reading</h3>")
	assert.Contains(t, html, "<li>Price is above its 20 week average.</li>")
	assert.Contains(t, html, "<h3>OUTLOOK</h3>")
	assert.Contains(t, html, "<li>Expect consolidation.</li>")
	assert.Contains(t, html, `src="data:image/png;base64,iVBORw=="`)
	assert.Contains(t, html, "64.25K")
	assert.Contains(t, html, "+3.20%")
	assert.Contains(t, html, "https://app.example.com")
}

func TestRenderWelcomeHTML(t *testing.T) {
	eth := sampleDoc()
	eth.Asset = models.Asset{Slug: "ethereum", Name: "Ethereum", Symbol: "eth"}

	c := NewComposer(nil, "")
	html, err := c.RenderWelcomeHTML(models.WelcomeDocument{
		Recipient: "ana@example.com",
		Assets:    []models.ReportDocument{sampleDoc(), eth},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "2 tracked assets")
	assert.Contains(t, html, "<h1>Bitcoin</h1>")
	assert.Contains(t, html, "<h1>Ethereum</h1>")
}

func TestComposeConvertsThroughPDFAPI(t *testing.T) {
	var got convertReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	c := NewComposer(NewPDFClient(PDFConfig{Endpoint: srv.URL, APIKey: "secret"}), "")
	pdf, err := c.Compose(context.Background(), sampleDoc())

	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), pdf)
	assert.Equal(t, "A4", got.Format)
	assert.Contains(t, got.Source, "<h1>Bitcoin</h1>")
}

func TestComposeFailsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "credits exhausted", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewComposer(NewPDFClient(PDFConfig{Endpoint: srv.URL}), "")
	_, err := c.Compose(context.Background(), sampleDoc())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
}
