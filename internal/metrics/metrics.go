// Package metrics records Prometheus metrics for dispatched operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lftpcmd"

// Outcome labels.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Metrics holds the operation metrics of all nodes.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of handled messages by node, operation and outcome.",
		}, []string{"node", "operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent handling a message, including the transfer.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"node", "operation"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Messages currently being handled.",
		}, []string{"node"}),
	}
}

// Start marks a message as in flight and returns a function that records
// its outcome. Calling Start on a nil *Metrics is allowed.
func (m *Metrics) Start(node string) func(operation string, err error) {
	if m == nil {
		return func(string, error) {}
	}

	start := time.Now()
	m.inFlight.WithLabelValues(node).Inc()

	return func(operation string, err error) {
		m.inFlight.WithLabelValues(node).Dec()

		outcome := OutcomeSent
		if err != nil {
			outcome = OutcomeFailed
		}
		m.operations.WithLabelValues(node, operation, outcome).Inc()
		m.duration.WithLabelValues(node, operation).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
