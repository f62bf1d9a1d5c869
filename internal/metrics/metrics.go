package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics records checkout and reconciliation outcomes. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	checkouts       *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
}

// New registers the storefront metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_initiations_total",
		Help:      "Checkout initiations by result.",
	}, []string{"result"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Payment reconciliations by final status.",
	}, []string{"status", "warning"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Snapshot writes that failed and were left in memory only.",
	}, []string{"kind"})
	backendDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of backend calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	reg.MustRegister(checkouts, reconciliations, persistFailures, backendDuration)
	return &Metrics{
		checkouts:       checkouts,
		reconciliations: reconciliations,
		persistFailures: persistFailures,
		backendDuration: backendDuration,
	}
}

func (m *Metrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncReconciliation(status string, warning bool) {
	if m == nil || m.reconciliations == nil {
		return
	}
	w := "false"
	if warning {
		w = "true"
	}
	m.reconciliations.WithLabelValues(normalizeLabel(status), w).Inc()
}

// IncPersistFailure counts a failed snapshot write; kind is "cart" or "auth".
func (m *Metrics) IncPersistFailure(kind string) {
	if m == nil || m.persistFailures == nil {
		return
	}
	m.persistFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) ObserveBackend(operation string, err error, duration time.Duration) {
	if m == nil || m.backendDuration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.backendDuration.WithLabelValues(normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
