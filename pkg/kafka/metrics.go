package kafka

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	producerMessages   *prometheus.CounterVec
	producerBytes      *prometheus.CounterVec
	producerLatency    *prometheus.HistogramVec
	consumerQueueDepth *prometheus.GaugeVec
	consumerHandled    *prometheus.CounterVec
	consumerLatency    *prometheus.HistogramVec

	metricsOnce sync.Once
)

func initMetrics() {
	metricsOnce.Do(func() {
		producerMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "coinpulse_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "compression", "result"},
		)
		producerBytes = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "coinpulse_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic"},
		)
		producerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "coinpulse_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)
		consumerQueueDepth = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "coinpulse_kafka_consumer_queue_depth", Help: "Messages waiting for a consumer worker"},
			[]string{"topic"},
		)
		consumerHandled = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "coinpulse_kafka_consumer_messages_total", Help: "Messages handled by the consumer"},
			[]string{"topic", "result"},
		)
		consumerLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "coinpulse_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
		for _, c := range []prometheus.Collector{
			producerMessages, producerBytes, producerLatency,
			consumerQueueDepth, consumerHandled, consumerLatency,
		} {
			_ = prometheus.DefaultRegisterer.Register(c)
		}
	})
}

func observePublish(topic, comp string, size int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, comp, result).Add(float64(count))
	producerBytes.WithLabelValues(topic).Add(float64(size))
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}

func observeHandle(topic string, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerHandled.WithLabelValues(topic, result).Inc()
	consumerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
