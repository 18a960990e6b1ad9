package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	transportRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "darray",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "One-shot coordinator exchanges by envelope kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
	transportDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "darray",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Dial-to-close duration of one coordinator exchange.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "outcome"},
	)
	coordinatorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "darray",
			Subsystem: "coordinator",
			Name:      "requests_total",
			Help:      "Envelopes handled by the coordinator by kind and reply status.",
		},
		[]string{"kind", "status"},
	)
	coordinatorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "darray",
			Subsystem: "coordinator",
			Name:      "request_duration_seconds",
			Help:      "Coordinator handling time per envelope.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "status"},
	)
	coordinatorArrays = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "darray",
			Subsystem: "coordinator",
			Name:      "arrays",
			Help:      "Arrays currently held by the coordinator.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "darray",
			Subsystem: "admin_http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			transportRequests,
			transportDuration,
			coordinatorRequests,
			coordinatorDuration,
			coordinatorArrays,
			httpRequests,
		)
	})
}

func RecordTransport(kind, outcome string, duration time.Duration) {
	RegisterMetrics()
	transportRequests.WithLabelValues(kind, outcome).Inc()
	transportDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
}

func RecordCoordinatorRequest(kind, status string, duration time.Duration) {
	RegisterMetrics()
	coordinatorRequests.WithLabelValues(kind, status).Inc()
	coordinatorDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
}

func SetCoordinatorArrays(n int) {
	RegisterMetrics()
	coordinatorArrays.Set(float64(n))
}

func RecordHTTPRequest(node, method, path string, status int) {
	RegisterMetrics()
	httpRequests.WithLabelValues(node, method, path, strconv.Itoa(status)).Inc()
}
