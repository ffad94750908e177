package ports

import (
	"context"
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
)

// OperationStatus represents the status of a bulk operation
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusUndone    OperationStatus = "undone"
)

// OperationRecord tracks one bulk operation from dispatch to completion,
// including the ineligible targets partitioned out before sending and the
// undo window when the action supports one.
type OperationRecord struct {
	OperationID    string          `json:"operation_id"`
	ActionID       string          `json:"action_id"`
	ActionType     string          `json:"action_type"`
	Status         OperationStatus `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Result         *actions.Result `json:"result,omitempty"`
	SkippedUpfront []actions.Skip  `json:"skipped_upfront,omitempty"`
	UndoableUntil  *time.Time      `json:"undoable_until,omitempty"`
}

// OperationStore manages bulk operation records
type OperationStore interface {
	// Store saves an operation record
	Store(ctx context.Context, record *OperationRecord) error

	// Get retrieves an operation record by ID
	Get(ctx context.Context, operationID string) (*OperationRecord, error)

	// Update updates an existing operation record
	Update(ctx context.Context, operationID string, record *OperationRecord) error

	// Delete removes an operation record
	Delete(ctx context.Context, operationID string) error

	// Active returns the pending operation, if any. Returns a NOT_FOUND
	// error when nothing is in flight.
	Active(ctx context.Context) (*OperationRecord, error)

	// CleanupExpired removes records older than the given duration
	CleanupExpired(ctx context.Context, olderThan time.Duration) error
}
