package rest

import (
	"context"
	"sync"
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
)

// RecoverySummary is the last completed recovery pass as shown on /status.
type RecoverySummary struct {
	CompletedAt  time.Time     `json:"completedAt"`
	Applied      int           `json:"applied"`
	Deleted      int           `json:"deleted"`
	SnapshotUsed bool          `json:"snapshotUsed"`
	Duration     time.Duration `json:"durationNs"`
}

// Monitor listens on the event bus for what the ops endpoints report:
// whether the connection has ever been open (readiness) and how the last
// recovery pass went.
type Monitor struct {
	mu            sync.RWMutex
	everConnected bool
	lastRecovery  *RecoverySummary
}

// NewMonitor creates an empty monitor. Register it on the bus for
// connection.state_changed and sync.recovery_completed.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// CanHandle reports the event types the monitor consumes.
func (m *Monitor) CanHandle(eventType string) bool {
	return eventType == events.TypeConnectionStateChanged || eventType == events.TypeRecoveryCompleted
}

// Handle updates the monitor off a bus event.
func (m *Monitor) Handle(_ context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.ConnectionStateChangedEvent:
		if e.Current == "OPEN" {
			m.mu.Lock()
			m.everConnected = true
			m.mu.Unlock()
		}
	case events.RecoveryCompletedEvent:
		m.mu.Lock()
		m.lastRecovery = &RecoverySummary{
			CompletedAt:  e.GetTimestamp(),
			Applied:      e.Applied,
			Deleted:      e.Deleted,
			SnapshotUsed: e.SnapshotUsed,
			Duration:     e.Duration,
		}
		m.mu.Unlock()
	}
	return nil
}

// Ready reports whether the connection has been open at least once.
func (m *Monitor) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.everConnected
}

// LastRecovery returns a copy of the last recovery summary, or nil before
// the first pass completes.
func (m *Monitor) LastRecovery() *RecoverySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastRecovery == nil {
		return nil
	}
	summary := *m.lastRecovery
	return &summary
}
