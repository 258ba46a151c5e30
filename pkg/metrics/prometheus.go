package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal      *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	aggregateScore *prometheus.GaugeVec
	ingestedTotal  *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg. Collectors that are
// already registered are reused.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_report_runs_total",
				Help: "Report runs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		aggregateScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coinpulse_aggregate_score",
				Help: "Last normalized aggregate score per asset",
			},
			[]string{"asset"},
		),
		ingestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_metric_records_ingested_total",
				Help: "Metric records written to the store",
			},
			[]string{"source"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coinpulse_operation_duration_seconds",
				Help:    "Duration of pipeline stages and other operations",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}
	r.runsTotal = register(reg, r.runsTotal)
	r.errorsTotal = register(reg, r.errorsTotal)
	r.aggregateScore = register(reg, r.aggregateScore)
	r.ingestedTotal = register(reg, r.ingestedTotal)
	r.latency = register(reg, r.latency)
	return r
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

// RecordRun counts a finished run; outcome is success, partial or failed.
func (r *Recorder) RecordRun(kind, outcome string) {
	r.runsTotal.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordAggregateScore(assetSlug string, normalized float64) {
	r.aggregateScore.WithLabelValues(assetSlug).Set(normalized)
}

func (r *Recorder) RecordIngested(source string, n int) {
	r.ingestedTotal.WithLabelValues(source).Add(float64(n))
}
