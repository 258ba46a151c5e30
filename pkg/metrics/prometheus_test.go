package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordRun("report", "success")
	r.RecordRun("report", "success")
	r.RecordRun("report", "partial")
	r.RecordError("narrate")
	r.RecordAggregateScore("bitcoin", 43)
	r.RecordIngested("kafka", 120)
	r.RecordLatency("fetch", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("report", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("report", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("narrate")))
	assert.Equal(t, 43.0, testutil.ToFloat64(r.aggregateScore.WithLabelValues("bitcoin")))
	assert.Equal(t, 120.0, testutil.ToFloat64(r.ingestedTotal.WithLabelValues("kafka")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := NewWithRegisterer(reg)
	b := NewWithRegisterer(reg)

	a.RecordRun("welcome", "failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(b.runsTotal.WithLabelValues("welcome", "failed")))
}
