package memory

import (
	"context"
	"sync"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// ActionQueueStore keeps the offline queue in memory. Pending actions live
// in a slice in enqueue order; parked actions move to the failed set.
type ActionQueueStore struct {
	mu      sync.RWMutex
	pending []actions.Action
	failed  []actions.Action
}

// NewActionQueueStore creates an empty in-memory queue store.
func NewActionQueueStore() *ActionQueueStore {
	return &ActionQueueStore{}
}

// Append adds an action to the tail.
func (s *ActionQueueStore) Append(ctx context.Context, action actions.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, cloneAction(action))
	return nil
}

// Head returns the oldest pending action.
func (s *ActionQueueStore) Head(ctx context.Context) (*actions.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.pending) == 0 {
		return nil, pkgerrors.NewNotFound("action queue is empty")
	}
	head := cloneAction(s.pending[0])
	return &head, nil
}

// Update rewrites a queued action in place.
func (s *ActionQueueStore) Update(ctx context.Context, action actions.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].ID == action.ID {
			s.pending[i] = cloneAction(action)
			return nil
		}
	}
	return pkgerrors.NewNotFound("action " + action.ID + " not queued")
}

// Remove deletes a queued action by ID. Unknown ids are a no-op.
func (s *ActionQueueStore) Remove(ctx context.Context, actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].ID == actionID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return nil
		}
	}
	return nil
}

// Park moves an action out of the pending queue into the failed set.
func (s *ActionQueueStore) Park(ctx context.Context, action actions.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pending {
		if s.pending[i].ID == action.ID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.failed = append(s.failed, cloneAction(action))
	return nil
}

// Pending returns queued actions oldest first.
func (s *ActionQueueStore) Pending(ctx context.Context) ([]actions.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneActions(s.pending), nil
}

// Failed returns parked actions oldest first.
func (s *ActionQueueStore) Failed(ctx context.Context) ([]actions.Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneActions(s.failed), nil
}

// Depth returns the number of pending actions.
func (s *ActionQueueStore) Depth(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending), nil
}

func cloneAction(action actions.Action) actions.Action {
	clone := action
	clone.TargetIDs = append([]valueobjects.VaultID(nil), action.TargetIDs...)
	if action.Options != nil {
		clone.Options = make(map[string]any, len(action.Options))
		for k, v := range action.Options {
			clone.Options[k] = v
		}
	}
	return clone
}

func cloneActions(list []actions.Action) []actions.Action {
	out := make([]actions.Action, 0, len(list))
	for _, action := range list {
		out = append(out, cloneAction(action))
	}
	return out
}
