package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newVault(t *testing.T, id string, version int64) *entities.Vault {
	t.Helper()
	vault, err := entities.VaultFromSnapshot(entities.Snapshot{
		ID:      id,
		Version: version,
		Name:    "Board Pack " + id,
		Status:  "active",
	})
	require.NoError(t, err)
	return vault
}

func TestStateStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()
	vault := newVault(t, "vault-1", 3)

	require.NoError(t, store.Put(ctx, vault))

	got, err := store.Get(ctx, vault.ID())
	require.NoError(t, err)
	assert.Equal(t, vault.Snapshot(), got.Snapshot())

	// Stored copy stays isolated from later mutations of the original
	name := "renamed"
	require.NoError(t, vault.ApplyPatch(entities.Patch{Name: &name}, valueobjects.Version(4)))
	got2, err := store.Get(ctx, vault.ID())
	require.NoError(t, err)
	assert.Equal(t, "Board Pack vault-1", got2.Name())

	require.NoError(t, store.Delete(ctx, vault.ID()))
	_, err = store.Get(ctx, vault.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	// Deleting again is a no-op
	assert.NoError(t, store.Delete(ctx, vault.ID()))
}

func TestStateStore_WatermarksAndReplaceAll(t *testing.T) {
	ctx := context.Background()
	store := NewStateStore()
	require.NoError(t, store.Put(ctx, newVault(t, "vault-1", 3)))
	require.NoError(t, store.Put(ctx, newVault(t, "vault-2", 7)))

	marks, err := store.Watermarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"vault-1": 3, "vault-2": 7}, marks)

	require.NoError(t, store.ReplaceAll(ctx, []*entities.Vault{newVault(t, "vault-3", 1)}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = store.Get(ctx, newVault(t, "vault-1", 3).ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestActionQueueStore_FIFO(t *testing.T) {
	ctx := context.Background()
	store := NewActionQueueStore()
	now := time.Now()

	target := []valueobjects.VaultID{mustVaultID(t, "vault-1")}
	first := actions.NewAction(actions.TypeArchive, target, nil, now)
	second := actions.NewAction(actions.TypeShare, target, nil, now.Add(time.Second))
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, head.ID)

	// Head stays put until removed
	head2, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, head2.ID)

	require.NoError(t, store.Remove(ctx, first.ID))
	head3, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, head3.ID)

	require.NoError(t, store.Remove(ctx, second.ID))
	_, err = store.Head(ctx)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestActionQueueStore_UpdateAndPark(t *testing.T) {
	ctx := context.Background()
	store := NewActionQueueStore()
	target := []valueobjects.VaultID{mustVaultID(t, "vault-1")}
	action := actions.NewAction(actions.TypeArchive, target, nil, time.Now())
	require.NoError(t, store.Append(ctx, action))

	action.Attempts = 2
	require.NoError(t, store.Update(ctx, action))
	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, head.Attempts)

	action.State = actions.StateFailed
	require.NoError(t, store.Park(ctx, action))

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	failed, err := store.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, actions.StateFailed, failed[0].State)
}

func TestOperationStore_ActiveAndCleanup(t *testing.T) {
	ctx := context.Background()
	clk := &fixedClock{now: time.Now()}
	store := NewOperationStore(clk)

	_, err := store.Active(ctx)
	assert.True(t, pkgerrors.IsNotFound(err))

	record := &ports.OperationRecord{
		OperationID: "op-1",
		ActionID:    "action-1",
		ActionType:  "archive",
		Status:      ports.OperationStatusPending,
		StartedAt:   clk.now,
	}
	require.NoError(t, store.Store(ctx, record))

	active, err := store.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "op-1", active.OperationID)

	record.Status = ports.OperationStatusCompleted
	require.NoError(t, store.Update(ctx, "op-1", record))
	_, err = store.Active(ctx)
	assert.True(t, pkgerrors.IsNotFound(err))

	clk.now = clk.now.Add(time.Hour)
	require.NoError(t, store.CleanupExpired(ctx, 30*time.Minute))
	_, err = store.Get(ctx, "op-1")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func mustVaultID(t *testing.T, raw string) valueobjects.VaultID {
	t.Helper()
	id, err := valueobjects.ParseVaultID(raw)
	require.NoError(t, err)
	return id
}
