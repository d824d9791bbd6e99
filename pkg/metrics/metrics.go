package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records login attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventnest_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RealtimeConnections tracks live WebSocket connections per channel (comments|notifications).
	RealtimeConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventnest_realtime_connections",
			Help: "Number of open realtime connections",
		},
		[]string{"channel"},
	)

	// RealtimeRejections counts connections closed before admission, by close code.
	RealtimeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_realtime_rejections_total",
			Help: "Realtime connections rejected during authentication or authorization",
		},
		[]string{"channel", "code"},
	)

	// RealtimeDropped counts connections dropped because their send queue was full.
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventnest_realtime_dropped_total",
			Help: "Realtime connections dropped for backpressure",
		},
	)

	// NotificationsCreated counts persisted notifications by verb.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_notifications_created_total",
			Help: "Notifications persisted by the dispatcher",
		},
		[]string{"verb"},
	)

	// NotificationEmails counts notification email attempts by result (sent|failed|skipped).
	NotificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_notification_emails_total",
			Help: "Notification email delivery attempts",
		},
		[]string{"result"},
	)

	// RemindersSent counts due-date reminders by ladder interval.
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_reminders_sent_total",
			Help: "Due date reminders emitted by the reminder scan",
		},
		[]string{"interval"},
	)

	// CleanupRemoved counts rows removed by the periodic cleanup, by table.
	CleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventnest_cleanup_removed_total",
			Help: "Rows removed by scheduled cleanup",
		},
		[]string{"table"},
	)
)
