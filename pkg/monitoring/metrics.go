package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Push channel metrics
	wsConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Number of identities with a live push connection",
		},
	)

	eventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dispatched_total",
			Help: "Total number of push event dispatch attempts",
		},
		[]string{"kind", "outcome"},
	)

	// Appointment metrics
	appointmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Total number of appointment state transitions",
		},
		[]string{"action", "status"},
	)

	// Audit pipeline metrics
	auditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit events by submission status",
		},
		[]string{"status"},
	)

	auditQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Number of audit events waiting for ledger submission",
		},
	)
)

func init() {
	prometheus.MustRegister(
		wsConnectionsActive,
		eventsDispatchedTotal,
		appointmentTransitionsTotal,
		auditEventsTotal,
		auditQueueDepth,
	)
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetActiveConnections records the current registry size
func SetActiveConnections(n int) {
	wsConnectionsActive.Set(float64(n))
}

// Dispatch outcomes
const (
	OutcomeDelivered   = "delivered"
	OutcomeUnreachable = "unreachable"
	OutcomeWriteFailed = "write_failed"
)

// RecordDispatch records one push event dispatch attempt
func RecordDispatch(kind, outcome string) {
	eventsDispatchedTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordTransition records one appointment state machine operation
func RecordTransition(action, status string) {
	appointmentTransitionsTotal.WithLabelValues(action, status).Inc()
}

// RecordAuditEvent records one audit event submission outcome
func RecordAuditEvent(status string) {
	auditEventsTotal.WithLabelValues(status).Inc()
}

// SetAuditQueueDepth records the audit writer queue depth
func SetAuditQueueDepth(n int) {
	auditQueueDepth.Set(float64(n))
}
