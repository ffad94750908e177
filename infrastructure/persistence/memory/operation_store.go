package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// OperationStore keeps bulk operation records in memory. The bulk
// coordinator drives cleanup after each completed operation, so there is
// no background sweeper.
type OperationStore struct {
	mu         sync.RWMutex
	operations map[string]*ports.OperationRecord
	clock      clock.Clock
}

// NewOperationStore creates an empty in-memory operation store.
func NewOperationStore(clk clock.Clock) *OperationStore {
	return &OperationStore{
		operations: make(map[string]*ports.OperationRecord),
		clock:      clk,
	}
}

// Store saves an operation record
func (s *OperationStore) Store(ctx context.Context, record *ports.OperationRecord) error {
	if record == nil || record.OperationID == "" {
		return pkgerrors.NewValidation("operation record needs an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.operations[record.OperationID] = cloneRecord(record)
	return nil
}

// Get retrieves an operation record by ID
func (s *OperationStore) Get(ctx context.Context, operationID string) (*ports.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.operations[operationID]
	if !exists {
		return nil, pkgerrors.NewNotFound("operation " + operationID + " not found")
	}
	return cloneRecord(record), nil
}

// Update updates an existing operation record
func (s *OperationStore) Update(ctx context.Context, operationID string, record *ports.OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[operationID]; !exists {
		return pkgerrors.NewNotFound("operation " + operationID + " not found")
	}

	s.operations[operationID] = cloneRecord(record)
	return nil
}

// Delete removes an operation record
func (s *OperationStore) Delete(ctx context.Context, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.operations, operationID)
	return nil
}

// Active returns the pending operation, if any.
func (s *OperationStore) Active(ctx context.Context) (*ports.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.operations {
		if record.Status == ports.OperationStatusPending {
			return cloneRecord(record), nil
		}
	}
	return nil, pkgerrors.NewNotFound("no bulk operation in flight")
}

// CleanupExpired removes records older than the given duration
func (s *OperationStore) CleanupExpired(ctx context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for id, record := range s.operations {
		if now.Sub(record.StartedAt) > olderThan {
			delete(s.operations, id)
		}
	}
	return nil
}

func cloneRecord(record *ports.OperationRecord) *ports.OperationRecord {
	clone := *record
	if record.CompletedAt != nil {
		at := *record.CompletedAt
		clone.CompletedAt = &at
	}
	if record.UndoableUntil != nil {
		at := *record.UndoableUntil
		clone.UndoableUntil = &at
	}
	if record.Result != nil {
		result := *record.Result
		clone.Result = &result
	}
	clone.SkippedUpfront = append([]actions.Skip(nil), record.SkippedUpfront...)
	return &clone
}
