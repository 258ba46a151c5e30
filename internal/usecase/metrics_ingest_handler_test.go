package usecase

import (
	"context"
	"testing"
	"time"

	"CoinPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	batches [][]models.MetricRecord
	err     error
}

func (w *fakeWriter) StoreBatch(_ context.Context, records []models.MetricRecord) error {
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, records)
	return nil
}

func TestMetricsIngestHandler_SingleMessage(t *testing.T) {
	w := &fakeWriter{}
	m := newFakeMetrics()
	h := NewMetricsIngestHandler("coinpulse.metrics.ingest", w, m, nil)

	msg := `{"asset_slug":"Bitcoin","metric_type":"price_usd","datetime":"2024-06-05T12:00:00Z","value":67012.5}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	require.Len(t, w.batches, 1)
	require.Len(t, w.batches[0], 1)
	r := w.batches[0][0]
	assert.Equal(t, "bitcoin", r.AssetSlug)
	assert.Equal(t, "price_usd", r.MetricType)
	assert.Equal(t, testNow, r.Datetime)
	require.NotNil(t, r.Value)
	assert.InDelta(t, 67012.5, *r.Value, 1e-9)
	assert.Nil(t, r.Open)
	assert.Equal(t, 1, m.ingest)
}

func TestMetricsIngestHandler_BatchWithMixedValues(t *testing.T) {
	w := &fakeWriter{}
	h := NewMetricsIngestHandler("t", w, nil, nil)

	msg := `[
		{"asset_slug":"bitcoin","metric_type":"dev_activity","datetime":"2024-06-05","value":"42"},
		{"asset_slug":"bitcoin","metric_type":"dev_activity","datetime":1717545600,"value":"n/a"},
		{"asset_slug":"bitcoin","metric_type":"price_usd_ohlc","datetime":1717545600000,"open":1,"high":2,"low":0.5,"close":1.5},
		{"asset_slug":"bitcoin","metric_type":"dev_activity","datetime":"yesterday","value":1},
		{"metric_type":"dev_activity","datetime":"2024-06-05","value":1}
	]`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))

	require.Len(t, w.batches, 1)
	recs := w.batches[0]
	require.Len(t, recs, 3, "bad datetime and missing asset are dropped")

	require.NotNil(t, recs[0].Value)
	assert.Equal(t, 42.0, *recs[0].Value)
	assert.Nil(t, recs[1].Value, "non-numeric value is kept as nil")
	assert.Equal(t, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), recs[1].Datetime)
	require.NotNil(t, recs[2].Close)
	assert.Equal(t, 1.5, *recs[2].Close)
	assert.Equal(t, recs[1].Datetime, recs[2].Datetime)
}

func TestMetricsIngestHandler_NothingValid(t *testing.T) {
	w := &fakeWriter{}
	h := NewMetricsIngestHandler("t", w, nil, nil)

	require.NoError(t, h.Handle(context.Background(), []byte(`{"asset_slug":"bitcoin","metric_type":"x","datetime":""}`)))
	assert.Empty(t, w.batches)
}

func TestMetricsIngestHandler_Errors(t *testing.T) {
	m := newFakeMetrics()

	h := NewMetricsIngestHandler("t", &fakeWriter{}, m, nil)
	assert.Error(t, h.Handle(context.Background(), []byte(`{not json`)))
	assert.Equal(t, 1, m.errors["ingest_unmarshal"])

	h = NewMetricsIngestHandler("t", &fakeWriter{err: errBoom}, m, nil)
	err := h.Handle(context.Background(), []byte(`{"asset_slug":"bitcoin","metric_type":"x","datetime":"2024-06-05","value":1}`))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, m.errors["ingest_store"])
	assert.Zero(t, m.ingest)
}
