package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the streak service. Each
// instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Scheduled      *prometheus.CounterVec
	Cancelled      *prometheus.CounterVec
	SubmitFailures *prometheus.CounterVec
	Skipped        *prometheus.CounterVec
	Delivered      prometheus.Counter
	Failed         prometheus.Counter
	Retried        prometheus.Counter
	Taps           *prometheus.CounterVec
	Celebrations   prometheus.Counter
}

// New registers a fresh collector set under the given namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}
	}

	m := &Metrics{
		registry: reg,
		Scheduled: prometheus.NewCounterVec(
			factory("notifications_scheduled_total", "Notification requests submitted, by type."),
			[]string{"type"},
		),
		Cancelled: prometheus.NewCounterVec(
			factory("notifications_cancelled_total", "Pending notification requests removed, by type."),
			[]string{"type"},
		),
		SubmitFailures: prometheus.NewCounterVec(
			factory("notification_submit_failures_total", "Notification submissions that failed, by type."),
			[]string{"type"},
		),
		Skipped: prometheus.NewCounterVec(
			factory("notification_schedules_skipped_total", "Schedule calls that did nothing, by type and reason."),
			[]string{"type", "reason"},
		),
		Delivered: prometheus.NewCounter(factory("pushes_delivered_total", "Due notifications delivered to the push provider.")),
		Failed:    prometheus.NewCounter(factory("pushes_failed_total", "Due notifications that could not be delivered.")),
		Retried:   prometheus.NewCounter(factory("pushes_retried_total", "Push provider retries.")),
		Taps: prometheus.NewCounterVec(
			factory("notification_taps_total", "Notification taps handled, by resolved type."),
			[]string{"type"},
		),
		Celebrations: prometheus.NewCounter(factory("celebrations_shown_total", "Streak celebrations surfaced.")),
	}

	reg.MustRegister(
		m.Scheduled, m.Cancelled, m.SubmitFailures, m.Skipped,
		m.Delivered, m.Failed, m.Retried, m.Taps, m.Celebrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
