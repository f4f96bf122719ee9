package httpbridge

import "github.com/prometheus/client_golang/prometheus"

// Delivery outcomes, used both as metric label values and in observer
// callbacks.
const (
	OutcomeResolved  = "resolved"
	OutcomeRejected  = "rejected"
	OutcomeStreamed  = "streamed"
	OutcomeCancelled = "cancelled"
)

var (
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intercept_httpbridge_deliveries_total",
			Help: "Terminal deliveries handled by the HTTP bridge backend.",
		},
		[]string{"outcome"},
	)

	chunkBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intercept_httpbridge_chunk_bytes_total",
			Help: "Body bytes streamed through the HTTP bridge backend.",
		},
	)
)

func init() {
	prometheus.MustRegister(deliveries)
	prometheus.MustRegister(chunkBytes)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	for _, o := range []string{OutcomeResolved, OutcomeRejected, OutcomeStreamed, OutcomeCancelled} {
		deliveries.WithLabelValues(o)
	}
}
