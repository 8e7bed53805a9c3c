package http

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"newsstream/internal/handler/http/pathutil"
	"newsstream/internal/handler/http/responsewriter"
	"newsstream/internal/observability/slo"
)

// MetricsHandler exposes the process's registered Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

var (
	requestDuration     *prometheus.HistogramVec
	requestDurationOnce sync.Once
)

// sloWindow tracks the most recent request outcomes so MetricsMiddleware can
// keep the slo gauges current without querying the histogram back out of
// Prometheus. Cumulative counters drive availability/error-rate; a small
// ring buffer of recent latencies drives the p95/p99 gauges.
type sloWindow struct {
	total, errors uint64

	mu          sync.Mutex
	latencies   []float64
	latencyNext int
}

const sloLatencyWindowSize = 256

var sloTracker = &sloWindow{latencies: make([]float64, 0, sloLatencyWindowSize)}

func (w *sloWindow) record(status int, elapsed time.Duration) {
	total := atomic.AddUint64(&w.total, 1)
	var errs uint64
	if status >= 500 {
		errs = atomic.AddUint64(&w.errors, 1)
	} else {
		errs = atomic.LoadUint64(&w.errors)
	}
	slo.UpdateAvailability(float64(total-errs) / float64(total))
	slo.UpdateErrorRate(float64(errs) / float64(total))

	w.mu.Lock()
	if len(w.latencies) < sloLatencyWindowSize {
		w.latencies = append(w.latencies, elapsed.Seconds())
	} else {
		w.latencies[w.latencyNext] = elapsed.Seconds()
		w.latencyNext = (w.latencyNext + 1) % sloLatencyWindowSize
	}
	sorted := append([]float64(nil), w.latencies...)
	w.mu.Unlock()

	sort.Float64s(sorted)
	slo.UpdateLatencyP95(percentile(sorted, 0.95))
	slo.UpdateLatencyP99(percentile(sorted, 0.99))
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

// MetricsMiddleware records request duration by normalized path, method,
// and status, keeping label cardinality bounded via pathutil.NormalizePath,
// and feeds the same observations into the process's slo gauges.
func MetricsMiddleware(next http.Handler) http.Handler {
	requestDurationOnce.Do(func() {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queryapi_http_request_duration_seconds",
			Help:    "HTTP request duration by normalized path, method, and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method", "status"})
		if err := prometheus.Register(hv); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				hv = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
		requestDuration = hv
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := responsewriter.Wrap(w)
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		requestDuration.WithLabelValues(
			pathutil.NormalizePath(r.URL.Path),
			r.Method,
			strconv.Itoa(rw.StatusCode()),
		).Observe(elapsed.Seconds())

		sloTracker.record(rw.StatusCode(), elapsed)
	})
}
