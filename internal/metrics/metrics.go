// Package metrics holds the Prometheus instruments for the poll loop and the
// notification worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hubtrack"

// Metrics groups all instruments. Registered once at startup via New and
// passed by pointer.
type Metrics struct {
	Polls               *prometheus.CounterVec
	PollDuration        prometheus.Histogram
	NewEvents           prometheus.Counter
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
}

// New registers all instruments with reg. depth backs the delivery queue
// gauge and may be nil.
func New(reg prometheus.Registerer, depth func() int) *Metrics {
	m := &Metrics{
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Tracking endpoint polls, labelled by result (ok/error).",
		}, []string{"result"}),

		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Duration of one fetch and diff step.",
			Buckets:   prometheus.DefBuckets,
		}),

		NewEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_events_total",
			Help:      "Tracking events reported as new.",
		}),

		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Update batches delivered to the chat.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Update batches the chat transport rejected (dropped, never retried).",
		}),
	}

	reg.MustRegister(
		m.Polls,
		m.PollDuration,
		m.NewEvents,
		m.NotificationsSent,
		m.NotificationsFailed,
	)

	if depth != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "delivery_queue_depth",
			Help:      "Batches waiting in the delivery channel.",
		}, func() float64 { return float64(depth()) }))
	}
	return m
}

// ObservePoll records one poll step.
func (m *Metrics) ObservePoll(d time.Duration, newEvents int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Polls.WithLabelValues(result).Inc()
	m.PollDuration.Observe(d.Seconds())
	if newEvents > 0 {
		m.NewEvents.Add(float64(newEvents))
	}
}

// WorkerHooks returns the callbacks expected by notifier.Hooks.
func (m *Metrics) WorkerHooks() (onSent func(), onFailed func(error)) {
	onSent = func() {
		if m != nil {
			m.NotificationsSent.Inc()
		}
	}
	onFailed = func(error) {
		if m != nil {
			m.NotificationsFailed.Inc()
		}
	}
	return
}
