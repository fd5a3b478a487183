// Package metrics exposes Prometheus instruments for stock movements,
// scheduled jobs, document dispatch and client sync.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups every instrument the service records. A nil *Metrics or
// one built without a registerer is a no-op.
type Metrics struct {
	stockMutations *prometheus.CounterVec
	shortages      *prometheus.CounterVec
	transitions    *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobResult      *prometheus.CounterVec
	outboxResult   *prometheus.CounterVec
	outboxPending  prometheus.Gauge
	syncPushes     *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the instruments on reg
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		stockMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_stock_mutations_total",
			Help: "Warehouse stock movements by ledger operation.",
		}, []string{"operation"}),
		shortages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warehouse_shortages_total",
			Help: "Shortages surfaced before a reservation, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estimate_transitions_total",
			Help: "Estimate lifecycle transitions.",
		}, []string{"transition"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "Duration of scheduled jobs in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		jobResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "job_runs_total",
			Help: "Scheduled job executions by result.",
		}, []string{"job", "result"}),
		outboxResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox events dispatched by event type and result.",
		}, []string{"event_type", "result"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "outbox_pending_events",
			Help: "Outbox events waiting to be dispatched.",
		}),
		syncPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sync_snapshot_pushes_total",
			Help: "Full snapshot pushes received by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.stockMutations, m.shortages, m.transitions,
		m.jobDuration, m.jobResult,
		m.outboxResult, m.outboxPending, m.syncPushes,
		m.httpDuration,
	)
	return m
}

// StockMutation counts one applied warehouse delta
func (m *Metrics) StockMutation(operation string) {
	if m == nil || m.stockMutations == nil {
		return
	}
	m.stockMutations.WithLabelValues(normalizeLabel(operation)).Inc()
}

// Shortage counts a shortage prompt and whether the caller went ahead
func (m *Metrics) Shortage(acknowledged bool) {
	if m == nil || m.shortages == nil {
		return
	}
	outcome := "rejected"
	if acknowledged {
		outcome = "acknowledged"
	}
	m.shortages.WithLabelValues(outcome).Inc()
}

// Transition counts a lifecycle transition
func (m *Metrics) Transition(name string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(name)).Inc()
}

// ObserveJob records duration and outcome of a scheduled job run
func (m *Metrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil || m.jobDuration == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	m.jobResult.WithLabelValues(job, result(err)).Inc()
}

// OutboxDispatch counts one dispatch attempt
func (m *Metrics) OutboxDispatch(eventType string, err error) {
	if m == nil || m.outboxResult == nil {
		return
	}
	m.outboxResult.WithLabelValues(normalizeLabel(eventType), result(err)).Inc()
}

// OutboxPending sets the backlog gauge
func (m *Metrics) OutboxPending(n int64) {
	if m == nil || m.outboxPending == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}

// SyncPush counts a received snapshot push
func (m *Metrics) SyncPush(err error) {
	if m == nil || m.syncPushes == nil {
		return
	}
	m.syncPushes.WithLabelValues(result(err)).Inc()
}

// HTTPRequest records one served request. route is the chi pattern, not the raw path.
func (m *Metrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), fmt.Sprintf("%dxx", status/100)).Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
