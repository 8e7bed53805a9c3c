package enrich

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsRecorder, generalizing the teacher's
// article_summarization_duration_seconds / _total pattern to all five
// enrichment calls via a "call" label.
type PrometheusMetrics struct {
	durationHistogram *prometheus.HistogramVec
	failureCounter    *prometheus.CounterVec
}

var (
	prometheusMetricsInstance *PrometheusMetrics
	prometheusMetricsOnce     sync.Once
)

// NewPrometheusMetrics returns the process-wide enrichment metrics recorder.
func NewPrometheusMetrics() *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetricsInstance = &PrometheusMetrics{
			durationHistogram: getOrCreateHistogramVec(prometheus.HistogramOpts{
				Name:    "article_enrichment_call_duration_seconds",
				Help:    "Time taken for a single enrichment model call, by call type",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			}, []string{"call"}),
			failureCounter: getOrCreateCounterVec(prometheus.CounterOpts{
				Name: "article_enrichment_call_failures_total",
				Help: "Total enrichment model call failures by call type",
			}, []string{"call"}),
		}
	})
	return prometheusMetricsInstance
}

func getOrCreateHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	hv := prometheus.NewHistogramVec(opts, labels)
	if err := prometheus.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	return hv
}

func getOrCreateCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(opts, labels)
	if err := prometheus.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return cv
}

// RecordCallDuration implements MetricsRecorder.
func (p *PrometheusMetrics) RecordCallDuration(call string, duration time.Duration) {
	p.durationHistogram.WithLabelValues(call).Observe(duration.Seconds())
}

// RecordCallFailure implements MetricsRecorder.
func (p *PrometheusMetrics) RecordCallFailure(call string) {
	p.failureCounter.WithLabelValues(call).Inc()
}
