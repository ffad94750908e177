package ports

import (
	"context"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
)

// StateStore holds the local vault replicas. The persistence behind it is
// abstracted away; the reconciler is the only writer.
type StateStore interface {
	// Get retrieves a vault replica. Returns a NOT_FOUND error when the
	// vault is unknown.
	Get(ctx context.Context, id valueobjects.VaultID) (*entities.Vault, error)

	// Put inserts or replaces a vault replica.
	Put(ctx context.Context, vault *entities.Vault) error

	// Delete removes a vault replica. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id valueobjects.VaultID) error

	// List returns all replicas in unspecified order.
	List(ctx context.Context) ([]*entities.Vault, error)

	// Watermarks returns the per-vault version map sent with SYNC_REQUEST.
	Watermarks(ctx context.Context) (map[string]int64, error)

	// ReplaceAll swaps the whole store for a fresh snapshot.
	ReplaceAll(ctx context.Context, vaults []*entities.Vault) error

	// Count returns the number of replicas.
	Count(ctx context.Context) (int, error)
}

// ActionQueueStore persists the offline action queue in FIFO order.
type ActionQueueStore interface {
	// Append adds an action to the tail.
	Append(ctx context.Context, action actions.Action) error

	// Head returns the oldest pending action. Returns a NOT_FOUND error
	// when the queue is empty.
	Head(ctx context.Context) (*actions.Action, error)

	// Update rewrites a queued action in place, keyed by its ID.
	Update(ctx context.Context, action actions.Action) error

	// Remove deletes a queued action by ID.
	Remove(ctx context.Context, actionID string) error

	// Park moves an action out of the pending queue into the failed set.
	Park(ctx context.Context, action actions.Action) error

	// Pending returns queued actions oldest first.
	Pending(ctx context.Context) ([]actions.Action, error)

	// Failed returns parked actions oldest first.
	Failed(ctx context.Context) ([]actions.Action, error)

	// Depth returns the number of pending actions.
	Depth(ctx context.Context) (int, error)
}
