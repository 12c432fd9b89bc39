package intf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the adapter's Prometheus collectors. Constructing against a
// private registry keeps tests isolated from the default one.
type Metrics struct {
	CommitsTotal            prometheus.Counter
	CommitsRejectedBusy     prometheus.Counter
	CommitsValidationFailed prometheus.Counter

	ReconcileRuns     prometheus.Counter
	ReconcileFailures prometheus.Counter
	ReconcileDuration prometheus.Histogram

	NotificationsEmitted prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg uses a private
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		CommitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_commits_total",
			Help: "Configuration commit batches received.",
		}),
		CommitsRejectedBusy: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_commits_rejected_busy_total",
			Help: "Commits rejected because a reconcile run was in progress.",
		}),
		CommitsValidationFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_commits_validation_failed_total",
			Help: "Commits rejected during the validate phase.",
		}),
		ReconcileRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_reconcile_runs_total",
			Help: "Reconcile passes started.",
		}),
		ReconcileFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_reconcile_failures_total",
			Help: "Reconcile passes that ended in error.",
		}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "onyx_reconcile_duration_seconds",
			Help:    "Wall time of reconcile passes.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		NotificationsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "onyx_link_notifications_emitted_total",
			Help: "De-duplicated link-state notifications emitted.",
		}),
	}
}
