// Package memory provides mutex-guarded in-memory implementations of the
// persistence ports. This is the default driver: the replicas are a cache
// of server state and most deployments can rebuild them on startup.
package memory

import (
	"context"
	"sync"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// StateStore keeps the vault replicas in a map. Reads hand out clones so
// callers can mutate what they get back without racing the store.
type StateStore struct {
	mu     sync.RWMutex
	vaults map[string]*entities.Vault
}

// NewStateStore creates an empty in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		vaults: make(map[string]*entities.Vault),
	}
}

// Get retrieves a vault replica by id.
func (s *StateStore) Get(ctx context.Context, id valueobjects.VaultID) (*entities.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vault, ok := s.vaults[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("vault " + id.String() + " not in local state")
	}
	return vault.Clone(), nil
}

// Put inserts or replaces a vault replica.
func (s *StateStore) Put(ctx context.Context, vault *entities.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vaults[vault.ID().String()] = vault.Clone()
	return nil
}

// Delete removes a vault replica. Unknown ids are a no-op.
func (s *StateStore) Delete(ctx context.Context, id valueobjects.VaultID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.vaults, id.String())
	return nil
}

// List returns all replicas in unspecified order.
func (s *StateStore) List(ctx context.Context) ([]*entities.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Vault, 0, len(s.vaults))
	for _, vault := range s.vaults {
		out = append(out, vault.Clone())
	}
	return out, nil
}

// Watermarks returns the per-vault version map.
func (s *StateStore) Watermarks(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	marks := make(map[string]int64, len(s.vaults))
	for id, vault := range s.vaults {
		marks[id] = vault.Version().Int64()
	}
	return marks, nil
}

// ReplaceAll swaps the whole store for a fresh snapshot.
func (s *StateStore) ReplaceAll(ctx context.Context, vaults []*entities.Vault) error {
	next := make(map[string]*entities.Vault, len(vaults))
	for _, vault := range vaults {
		next[vault.ID().String()] = vault.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults = next
	return nil
}

// Count returns the number of replicas.
func (s *StateStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vaults), nil
}
