package events

import (
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
)

// ConnectionStateChangedEvent is raised on every transport FSM transition.
type ConnectionStateChangedEvent struct {
	BaseEvent
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

// NewConnectionStateChangedEvent creates a ConnectionStateChangedEvent
func NewConnectionStateChangedEvent(previous, current string, timestamp time.Time) ConnectionStateChangedEvent {
	return ConnectionStateChangedEvent{
		BaseEvent: BaseEvent{
			AggregateID: "connection",
			EventType:   TypeConnectionStateChanged,
			Timestamp:   timestamp,
			Version:     1,
		},
		Previous: previous,
		Current:  current,
	}
}

// SessionExpiredEvent is raised when the server invalidates the session.
// The connection will not retry until a fresh connect with a fresh token.
type SessionExpiredEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// NewSessionExpiredEvent creates a SessionExpiredEvent
func NewSessionExpiredEvent(reason string, timestamp time.Time) SessionExpiredEvent {
	return SessionExpiredEvent{
		BaseEvent: BaseEvent{
			AggregateID: "connection",
			EventType:   TypeSessionExpired,
			Timestamp:   timestamp,
			Version:     1,
		},
		Reason: reason,
	}
}

// RecoveryCompletedEvent is raised after a reconnect's missed-update
// recovery finishes and live processing resumes.
type RecoveryCompletedEvent struct {
	BaseEvent
	Applied      int           `json:"applied"`
	Deleted      int           `json:"deleted"`
	SnapshotUsed bool          `json:"snapshotUsed"`
	Duration     time.Duration `json:"duration"`
}

// NewRecoveryCompletedEvent creates a RecoveryCompletedEvent
func NewRecoveryCompletedEvent(applied, deleted int, snapshotUsed bool, duration time.Duration, timestamp time.Time) RecoveryCompletedEvent {
	return RecoveryCompletedEvent{
		BaseEvent: BaseEvent{
			AggregateID: "connection",
			EventType:   TypeRecoveryCompleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		Applied:      applied,
		Deleted:      deleted,
		SnapshotUsed: snapshotUsed,
		Duration:     duration,
	}
}

// ActionQueuedEvent is raised when an action enters the offline queue. The
// UI renders the optimistic change with a pending-sync marker off this
// event.
type ActionQueuedEvent struct {
	BaseEvent
	ActionID    string   `json:"actionId"`
	ActionType  string   `json:"actionType"`
	TargetIDs   []string `json:"targetIds"`
	PendingSync bool     `json:"pendingSync"`
}

// NewActionQueuedEvent creates an ActionQueuedEvent
func NewActionQueuedEvent(action actions.Action, timestamp time.Time) ActionQueuedEvent {
	req := action.Request()
	return ActionQueuedEvent{
		BaseEvent: BaseEvent{
			AggregateID: action.ID,
			EventType:   TypeActionQueued,
			Timestamp:   timestamp,
			Version:     1,
		},
		ActionID:    action.ID,
		ActionType:  req.ActionType,
		TargetIDs:   req.TargetIDs,
		PendingSync: true,
	}
}

// ActionAckedEvent is raised when a replayed or live action is acknowledged.
type ActionAckedEvent struct {
	BaseEvent
	ActionID string         `json:"actionId"`
	Result   actions.Result `json:"result"`
}

// NewActionAckedEvent creates an ActionAckedEvent
func NewActionAckedEvent(result actions.Result, timestamp time.Time) ActionAckedEvent {
	return ActionAckedEvent{
		BaseEvent: BaseEvent{
			AggregateID: result.ActionID,
			EventType:   TypeActionAcked,
			Timestamp:   timestamp,
			Version:     1,
		},
		ActionID: result.ActionID,
		Result:   result,
	}
}

// ActionRolledBackEvent tells the UI to revert an optimistic update, with
// the reason shown to the user.
type ActionRolledBackEvent struct {
	BaseEvent
	ActionID string `json:"actionId"`
	Reason   string `json:"reason"`
}

// NewActionRolledBackEvent creates an ActionRolledBackEvent
func NewActionRolledBackEvent(actionID, reason string, timestamp time.Time) ActionRolledBackEvent {
	return ActionRolledBackEvent{
		BaseEvent: BaseEvent{
			AggregateID: actionID,
			EventType:   TypeActionRolledBack,
			Timestamp:   timestamp,
			Version:     1,
		},
		ActionID: actionID,
		Reason:   reason,
	}
}

// ActionFailedEvent is raised when an action exhausts its replay attempts.
type ActionFailedEvent struct {
	BaseEvent
	ActionID string `json:"actionId"`
	Attempts int    `json:"attempts"`
	Reason   string `json:"reason"`
}

// NewActionFailedEvent creates an ActionFailedEvent
func NewActionFailedEvent(actionID string, attempts int, reason string, timestamp time.Time) ActionFailedEvent {
	return ActionFailedEvent{
		BaseEvent: BaseEvent{
			AggregateID: actionID,
			EventType:   TypeActionFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		ActionID: actionID,
		Attempts: attempts,
		Reason:   reason,
	}
}

// BulkOperationCompletedEvent summarizes a finished bulk operation.
type BulkOperationCompletedEvent struct {
	BaseEvent
	OperationID   string     `json:"operationId"`
	ActionType    string     `json:"actionType"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	Skipped       int        `json:"skipped"`
	UndoableUntil *time.Time `json:"undoableUntil,omitempty"`
}

// NewBulkOperationCompletedEvent creates a BulkOperationCompletedEvent
func NewBulkOperationCompletedEvent(operationID, actionType string, succeeded, failed, skipped int, undoableUntil *time.Time, timestamp time.Time) BulkOperationCompletedEvent {
	return BulkOperationCompletedEvent{
		BaseEvent: BaseEvent{
			AggregateID: operationID,
			EventType:   TypeBulkCompleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		OperationID:   operationID,
		ActionType:    actionType,
		Succeeded:     succeeded,
		Failed:        failed,
		Skipped:       skipped,
		UndoableUntil: undoableUntil,
	}
}

// BulkUndoRequestedEvent is raised when an undo is sent for a completed
// bulk operation inside its undo window.
type BulkUndoRequestedEvent struct {
	BaseEvent
	OperationID string `json:"operationId"`
	ActionType  string `json:"actionType"`
}

// NewBulkUndoRequestedEvent creates a BulkUndoRequestedEvent
func NewBulkUndoRequestedEvent(operationID, actionType string, timestamp time.Time) BulkUndoRequestedEvent {
	return BulkUndoRequestedEvent{
		BaseEvent: BaseEvent{
			AggregateID: operationID,
			EventType:   TypeBulkUndoRequested,
			Timestamp:   timestamp,
			Version:     1,
		},
		OperationID: operationID,
		ActionType:  actionType,
	}
}

// PresenceChangedEvent mirrors a PRESENCE_CHANGED message onto the bus.
type PresenceChangedEvent struct {
	BaseEvent
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// NewPresenceChangedEvent creates a PresenceChangedEvent
func NewPresenceChangedEvent(userID string, online bool, timestamp time.Time) PresenceChangedEvent {
	return PresenceChangedEvent{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   TypePresenceChanged,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID: userID,
		Online: online,
	}
}

// TypingStartedEvent marks an actor typing in a vault.
type TypingStartedEvent struct {
	BaseEvent
	VaultID string `json:"vaultId"`
	UserID  string `json:"userId"`
}

// NewTypingStartedEvent creates a TypingStartedEvent
func NewTypingStartedEvent(vaultID, userID string, timestamp time.Time) TypingStartedEvent {
	return TypingStartedEvent{
		BaseEvent: BaseEvent{
			AggregateID: vaultID,
			EventType:   TypeTypingStarted,
			Timestamp:   timestamp,
			Version:     1,
		},
		VaultID: vaultID,
		UserID:  userID,
	}
}

// TypingStoppedEvent marks an actor no longer typing, either explicitly or
// because the indicator expired.
type TypingStoppedEvent struct {
	BaseEvent
	VaultID string `json:"vaultId"`
	UserID  string `json:"userId"`
	Expired bool   `json:"expired"`
}

// NewTypingStoppedEvent creates a TypingStoppedEvent
func NewTypingStoppedEvent(vaultID, userID string, expired bool, timestamp time.Time) TypingStoppedEvent {
	return TypingStoppedEvent{
		BaseEvent: BaseEvent{
			AggregateID: vaultID,
			EventType:   TypeTypingStopped,
			Timestamp:   timestamp,
			Version:     1,
		},
		VaultID: vaultID,
		UserID:  userID,
		Expired: expired,
	}
}
