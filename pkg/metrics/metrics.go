package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registration outcomes.
const (
	OutcomeAccepted   = "accepted"
	OutcomeInvalid    = "invalid"
	OutcomeDuplicate  = "duplicate"
	OutcomeStorageErr = "storage_error"
)

// Metrics holds the Prometheus collectors for the registration service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registrations  *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
	PipelineLength prometheus.Histogram
}

// New creates and registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_notifications_total",
			Help: "Notification dispatch attempts by email type and status",
		}, []string{"type", "status"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by scope",
		}, []string{"scope"}),
		PipelineLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_pipeline_duration_seconds",
			Help:    "Time spent in the registration pipeline",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveRegistration counts one pipeline outcome.
func (m *Metrics) ObserveRegistration(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
	m.PipelineLength.Observe(seconds)
}

// ObserveNotification counts one dispatch attempt.
func (m *Metrics) ObserveNotification(emailType, status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(emailType, status).Inc()
}

// IncrementRateLimited counts one rejected request.
func (m *Metrics) IncrementRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}
