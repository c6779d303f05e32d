// Package metrics exposes Prometheus collectors for the accounting bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total webhook events received, labeled by action and processing outcome",
		},
		[]string{"action", "outcome"},
	)
	eventProcessingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "event_processing_duration_seconds",
			Help:    "Duration of per-event triage and delivery in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	triageDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_decisions_total",
			Help: "Triage decisions, labeled by action and reason",
		},
		[]string{"action", "reason"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries, labeled by status",
		},
		[]string{"status"},
	)
	callbackActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callback_actions_total",
			Help: "Interactive button actions, labeled by action type and status",
		},
		[]string{"action", "status"},
	)
	settlementCheckoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_checkouts_total",
			Help: "Total settlement checkout operations",
		},
	)
	adminSyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_sync_runs_total",
			Help: "Admin roster sync runs, labeled by status",
		},
		[]string{"status"},
	)
	registeredAdmins = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registered_admins",
			Help: "Number of admin destinations currently registered",
		},
	)
)

// RecordWebhookEvent counts one inbound event and its processing duration.
func RecordWebhookEvent(action, outcome string, duration time.Duration) {
	if action == "" {
		action = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}

	webhookEventsTotal.WithLabelValues(action, outcome).Inc()
	eventProcessingSeconds.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordTriageDecision counts one triage outcome.
func RecordTriageDecision(action, reason string) {
	if reason == "" {
		reason = "none"
	}

	triageDecisionsTotal.WithLabelValues(action, reason).Inc()
}

// RecordNotification counts one delivery attempt.
func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordCallbackAction counts one interactive action.
func RecordCallbackAction(action, status string) {
	if action == "" {
		action = "unknown"
	}

	callbackActionsTotal.WithLabelValues(action, status).Inc()
}

// RecordSettlementCheckout counts one checkout operation.
func RecordSettlementCheckout() {
	settlementCheckoutsTotal.Inc()
}

// RecordAdminSync counts one sync run.
func RecordAdminSync(status string) {
	adminSyncRunsTotal.WithLabelValues(status).Inc()
}

// SetRegisteredAdmins updates the registered admin gauge.
func SetRegisteredAdmins(count int) {
	registeredAdmins.Set(float64(count))
}
