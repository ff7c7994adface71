// Package metrics registers the service's Prometheus collectors. Counters are
// package-level promauto values — they register against the default registry
// and the api package exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemindersSent counts client reminders actually delivered, by severity.
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Client submission reminders delivered, by severity level.",
	}, []string{"severity"})

	// EscalationsSent counts consultant escalation emails delivered.
	EscalationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "escalations_sent_total",
		Help: "Consultant escalation emails delivered.",
	})

	// EmailFailures counts failed send attempts, by email kind.
	EmailFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "email_failures_total",
		Help: "Email send attempts that returned an error, by kind.",
	}, []string{"kind"})

	// SchedulerRuns counts batch executions by outcome ("ok" or "error").
	SchedulerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_runs_total",
		Help: "Daily reminder batch executions, by outcome.",
	}, []string{"outcome"})

	// ClientsSkipped counts per-client skips inside a batch, by reason.
	ClientsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_clients_skipped_total",
		Help: "Clients skipped during a batch run, by reason.",
	}, []string{"reason"})

	// RunDuration observes wall time of a full batch run.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_run_duration_seconds",
		Help:    "Duration of a full reminder batch run.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
