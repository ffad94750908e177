package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds all Prometheus metrics for the sync core. Every
// collector owns its own registry, so tests can create as many as
// they like without duplicate-registration panics.
type Collector struct {
	registry *prometheus.Registry

	// Message pipeline metrics
	MessagesReceived   *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	DuplicatesDropped  prometheus.Counter
	StaleUpdates       prometheus.Counter

	// Connection metrics
	Reconnects      prometheus.Counter
	ConnectionState prometheus.Gauge

	// Recovery metrics
	RecoveryRuns     *prometheus.CounterVec
	RecoveryDuration prometheus.Histogram

	// Action queue metrics
	ActionsReplayed *prometheus.CounterVec
	QueueDepth      prometheus.Gauge

	// Bulk operation metrics
	BulkOperations *prometheus.CounterVec

	// Presence metrics
	PresenceActive prometheus.Gauge
	TypingActive   prometheus.Gauge

	// State apply metrics
	ApplyDuration prometheus.Histogram

	// Snapshot endpoint metrics
	SnapshotFetches *prometheus.CounterVec
}

// NewCollector creates a metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	messagesReceived := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound messages by type",
		},
		[]string{"type"},
	)

	validationFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of inbound messages rejected by the validator",
		},
		[]string{"reason"},
	)

	duplicatesDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Total number of messages dropped by the dedup filter",
		},
	)

	staleUpdates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_updates_discarded_total",
			Help:      "Total number of updates discarded for carrying an old version",
		},
	)

	reconnects := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts",
		},
	)

	connectionState := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=closed 1=connecting 2=open 3=reconnecting 4=session_expired)",
		},
	)

	recoveryRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recovery_runs_total",
			Help:      "Total number of missed-update recovery runs by outcome",
		},
		[]string{"outcome"},
	)

	recoveryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recovery_duration_seconds",
			Help:      "Missed-update recovery duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	actionsReplayed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_replayed_total",
			Help:      "Total number of queued actions replayed by outcome",
		},
		[]string{"outcome"},
	)

	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of actions waiting in the offline queue",
		},
	)

	bulkOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_operations_total",
			Help:      "Total number of bulk operations by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	presenceActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_active",
			Help:      "Number of actors currently online",
		},
	)

	typingActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_active",
			Help:      "Number of live typing indicators",
		},
	)

	applyDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "apply_duration_seconds",
			Help:      "State reconciliation duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	snapshotFetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_fetches_total",
			Help:      "Total number of full-state snapshot fetches by outcome",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		messagesReceived,
		validationFailures,
		duplicatesDropped,
		staleUpdates,
		reconnects,
		connectionState,
		recoveryRuns,
		recoveryDuration,
		actionsReplayed,
		queueDepth,
		bulkOperations,
		presenceActive,
		typingActive,
		applyDuration,
		snapshotFetches,
	)

	return &Collector{
		registry:           registry,
		MessagesReceived:   messagesReceived,
		ValidationFailures: validationFailures,
		DuplicatesDropped:  duplicatesDropped,
		StaleUpdates:       staleUpdates,
		Reconnects:         reconnects,
		ConnectionState:    connectionState,
		RecoveryRuns:       recoveryRuns,
		RecoveryDuration:   recoveryDuration,
		ActionsReplayed:    actionsReplayed,
		QueueDepth:         queueDepth,
		BulkOperations:     bulkOperations,
		PresenceActive:     presenceActive,
		TypingActive:       typingActive,
		ApplyDuration:      applyDuration,
		SnapshotFetches:    snapshotFetches,
	}
}

// Registry exposes the collector's registry so an ops endpoint can
// serve it.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetConnectionState records the connection FSM state as a gauge.
func (c *Collector) SetConnectionState(state string) {
	var v float64
	switch state {
	case "CONNECTING":
		v = 1
	case "OPEN":
		v = 2
	case "RECONNECTING":
		v = 3
	case "SESSION_EXPIRED":
		v = 4
	default:
		v = 0
	}
	c.ConnectionState.Set(v)
}

// ObserveApply records one reconciliation pass.
func (c *Collector) ObserveApply(d time.Duration) {
	c.ApplyDuration.Observe(d.Seconds())
}

// ObserveRecovery records one recovery run with its outcome.
func (c *Collector) ObserveRecovery(outcome string, d time.Duration) {
	c.RecoveryRuns.WithLabelValues(outcome).Inc()
	c.RecoveryDuration.Observe(d.Seconds())
}
