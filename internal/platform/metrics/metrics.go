// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "http",
	Name:      "requests_total",
	Help:      "Total HTTP requests by method and status code.",
}, []string{"method", "status"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "lms",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency in seconds.",
	Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
}, []string{"method"})

var RequestsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "workflow",
	Name:      "requests_submitted_total",
	Help:      "Total leave requests accepted by the workflow engine.",
})

var SubmissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "workflow",
	Name:      "submissions_rejected_total",
	Help:      "Total leave submissions rejected before a request was created, by reason.",
}, []string{"reason"})

var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "workflow",
	Name:      "decisions_total",
	Help:      "Total approval decisions recorded, by outcome.",
}, []string{"outcome"})

var BalanceDebits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "ledger",
	Name:      "debits_total",
	Help:      "Total balance debits applied on final approval.",
})

var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lms",
	Subsystem: "jobs",
	Name:      "runs_total",
	Help:      "Total background job runs by job type and status.",
}, []string{"job", "status"})
