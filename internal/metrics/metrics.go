// Package metrics exposes Prometheus instrumentation for the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session lifecycle events recorded by ObserveSession.
const (
	SessionOpened    = "opened"
	SessionRejected  = "rejected"  // open while a session was already active
	SessionClosed    = "closed"
	SessionDiscarded = "discarded" // below the minimum duration
	SessionStale     = "stale"
)

// Collector bundles all bridge metrics behind one registry.
type Collector struct {
	registry *prometheus.Registry

	sessions      *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	submitLatency prometheus.Histogram
	webhooks      *prometheus.CounterVec
	notifyFails   prometheus.Counter
	clampedSpans  prometheus.Counter
}

// NewCollector creates and registers all metrics on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worklogd_sessions_total",
			Help: "Session lifecycle events by outcome.",
		}, []string{"event"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worklogd_submissions_total",
			Help: "Worklog submission attempts by tier and result.",
		}, []string{"tier", "result"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "worklogd_submission_duration_seconds",
			Help:    "Wall time of a full submission chain.",
			Buckets: prometheus.DefBuckets,
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worklogd_webhook_requests_total",
			Help: "Webhook requests by HTTP status code.",
		}, []string{"code"}),
		notifyFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worklogd_notify_failures_total",
			Help: "Best-effort notifications that could not be delivered.",
		}),
		clampedSpans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worklogd_clamped_durations_total",
			Help: "Session durations clamped to zero due to clock skew.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.sessions,
		c.submissions,
		c.submitLatency,
		c.webhooks,
		c.notifyFails,
		c.clampedSpans,
	)
	return c
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveSession records a session lifecycle event.
func (c *Collector) ObserveSession(event string) {
	c.sessions.WithLabelValues(event).Inc()
}

// ObserveSubmission records one submission attempt on a tier.
func (c *Collector) ObserveSubmission(tier, result string) {
	c.submissions.WithLabelValues(tier, result).Inc()
}

// ObserveSubmissionLatency records the wall time of a full chain.
func (c *Collector) ObserveSubmissionLatency(seconds float64) {
	c.submitLatency.Observe(seconds)
}

// ObserveWebhook records a webhook request result.
func (c *Collector) ObserveWebhook(code string) {
	c.webhooks.WithLabelValues(code).Inc()
}

// ObserveNotifyFailure records a failed notification delivery.
func (c *Collector) ObserveNotifyFailure() {
	c.notifyFails.Inc()
}

// ObserveClampedDuration records a duration clamped to zero.
func (c *Collector) ObserveClampedDuration() {
	c.clampedSpans.Inc()
}
