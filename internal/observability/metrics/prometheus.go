// Package metrics provides Prometheus metrics for the enrollment gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	registry *prometheus.Registry

	PlatformCalls        *prometheus.CounterVec
	PlatformCallDuration prometheus.Histogram
	PlatformRetries      prometheus.Counter
	AccountsValidated    prometheus.Counter
	EnrollmentsSubmitted prometheus.Counter
	AppointmentsBooked   prometheus.Counter
	ResponsesRejected    *prometheus.CounterVec
	AuditOutboxPending   prometheus.Gauge
	AuditEventsPublished prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates and registers all metrics on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PlatformCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_calls_total",
			Help: "Total outbound enrollment platform calls",
		}, []string{"path", "outcome"}),
		PlatformCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platform_call_duration_seconds",
			Help:    "Platform call duration including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		PlatformRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platform_call_retries_total",
			Help: "Total platform call retry attempts",
		}),
		AccountsValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_validated_total",
			Help: "Total account validation calls",
		}),
		EnrollmentsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "enrollments_submitted_total",
			Help: "Total enrollment submissions",
		}),
		AppointmentsBooked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_booked_total",
			Help: "Total appointments booked",
		}),
		ResponsesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platform_responses_rejected_total",
			Help: "Responses failing the trust screen, by response kind",
		}, []string{"kind"}),
		AuditOutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audit_outbox_pending_entries",
			Help: "Pending audit outbox entries",
		}),
		AuditEventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_published_total",
			Help: "Total audit events published to the bus",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
	}

	m.registry.MustRegister(
		m.PlatformCalls,
		m.PlatformCallDuration,
		m.PlatformRetries,
		m.AccountsValidated,
		m.EnrollmentsSubmitted,
		m.AppointmentsBooked,
		m.ResponsesRejected,
		m.AuditOutboxPending,
		m.AuditEventsPublished,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the HTTP handler serving this bundle's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
