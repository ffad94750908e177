// Package events defines the realtime wire protocol (envelopes and typed
// payloads) and the domain events the sync core publishes on its in-process
// bus.
package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event types published on the in-process bus. Subscribers filter on these.
const (
	TypeStateDiff              = "sync.state_diff"
	TypeRecoveryCompleted      = "sync.recovery_completed"
	TypeConnectionStateChanged = "connection.state_changed"
	TypeSessionExpired         = "connection.session_expired"
	TypeActionQueued           = "action.queued"
	TypeActionAcked            = "action.acked"
	TypeActionRolledBack       = "action.rolled_back"
	TypeActionFailed           = "action.failed"
	TypeBulkCompleted          = "bulk.completed"
	TypeBulkUndoRequested      = "bulk.undo_requested"
	TypePresenceChanged        = "presence.changed"
	TypeTypingStarted          = "presence.typing_started"
	TypeTypingStopped          = "presence.typing_stopped"
)
