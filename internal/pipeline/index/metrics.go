package index

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements IndexRecorder.
type PrometheusMetrics struct {
	indexedTotal *prometheus.CounterVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// NewPrometheusMetrics returns the process-wide indexing metrics recorder.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "article_index_writes_total",
			Help: "Total article index write attempts, by outcome",
		}, []string{"outcome"})
		if err := prometheus.Register(counter); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				counter = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		prometheusMetricsInstance = &PrometheusMetrics{indexedTotal: counter}
	})
	return prometheusMetricsInstance
}

// RecordIndexSuccess implements IndexRecorder.
func (p *PrometheusMetrics) RecordIndexSuccess() {
	p.indexedTotal.WithLabelValues("success").Inc()
}

// RecordIndexFailure implements IndexRecorder.
func (p *PrometheusMetrics) RecordIndexFailure() {
	p.indexedTotal.WithLabelValues("failure").Inc()
}
