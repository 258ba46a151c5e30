package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinpulse",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client rate limit",
		},
		[]string{"route"},
	)

	ReportRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinpulse",
			Subsystem: "api",
			Name:      "report_requests_total",
			Help:      "Report requests by endpoint and response status",
		},
		[]string{"endpoint", "status"},
	)
)

// Register adds the API collectors to reg once per process. A nil reg uses
// the default registerer.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(RateLimited, ReportRequests)
	})
}
