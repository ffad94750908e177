package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

func openStore(t *testing.T) *ActionQueueStore {
	t.Helper()
	store, err := NewActionQueueStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newAction(t *testing.T, actionType actions.ActionType, at time.Time) actions.Action {
	t.Helper()
	id, err := valueobjects.ParseVaultID("vault-1")
	require.NoError(t, err)
	return actions.NewAction(actionType, []valueobjects.VaultID{id}, nil, at)
}

func TestActionQueueStore_FIFOSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")

	store, err := NewActionQueueStore(path)
	require.NoError(t, err)

	now := time.Now()
	first := newAction(t, actions.TypeArchive, now)
	second := newAction(t, actions.TypeShare, now.Add(time.Second))
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))
	require.NoError(t, store.Close())

	// Reopen and verify order held
	store, err = NewActionQueueStore(path)
	require.NoError(t, err)
	defer store.Close()

	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, head.ID)
	assert.Equal(t, actions.TypeArchive, head.Type)

	pending, err := store.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
}

func TestActionQueueStore_HeadEmpty(t *testing.T) {
	store := openStore(t)

	_, err := store.Head(context.Background())

	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestActionQueueStore_UpdateRemovePark(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	action := newAction(t, actions.TypeArchive, time.Now())
	require.NoError(t, store.Append(ctx, action))

	// Update rewrites in place
	action.Attempts = 3
	require.NoError(t, store.Update(ctx, action))
	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, head.Attempts)

	// Updating an unknown action fails
	ghost := newAction(t, actions.TypeExport, time.Now())
	err = store.Update(ctx, ghost)
	assert.True(t, pkgerrors.IsNotFound(err))

	// Park moves it to the failed set
	action.State = actions.StateFailed
	require.NoError(t, store.Park(ctx, action))

	depth, err := store.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	failed, err := store.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, action.ID, failed[0].ID)

	// Remove of a missing id is a no-op
	assert.NoError(t, store.Remove(ctx, action.ID))
}
