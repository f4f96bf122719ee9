package pushbuf

import "github.com/prometheus/client_golang/prometheus"

// Metric label values for delivery outcome.
const (
	outcomeResolved  = "resolved"
	outcomeRejected  = "rejected"
	outcomeStreamed  = "streamed"
	outcomeCancelled = "cancelled"
)

var (
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intercept_pushbuf_deliveries_total",
			Help: "Terminal deliveries handled by the push-buffer backend.",
		},
		[]string{"outcome"},
	)

	chunkBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intercept_pushbuf_chunk_bytes_total",
			Help: "Body bytes pushed through push-buffer stream devices.",
		},
	)
)

func init() {
	prometheus.MustRegister(deliveries)
	prometheus.MustRegister(chunkBytes)

	// Pre-initialize label combinations so they appear in /metrics with
	// value 0 from startup, rather than only after first observation.
	for _, o := range []string{outcomeResolved, outcomeRejected, outcomeStreamed, outcomeCancelled} {
		deliveries.WithLabelValues(o)
	}
}
