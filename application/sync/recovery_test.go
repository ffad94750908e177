package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/infrastructure/persistence/memory"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

type recoveryFixture struct {
	service   *RecoveryService
	transport *fakeTransport
	store     *memory.StateStore
	snapshots *fakeSnapshots
	bus       *safeBus
	clock     *manualClock
}

func newRecoveryFixture(t *testing.T) *recoveryFixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewCollector("recoverytest")
	clk := newManualClock()

	transport := newFakeTransport()
	transport.open()
	store := memory.NewStateStore()
	snapshots := &fakeSnapshots{}
	bus := &safeBus{}

	reconciler := NewReconciler(store, clk, logger, metrics)
	service := NewRecoveryService(transport, store, reconciler, snapshots, &fakeTokens{}, bus, clk, logger, metrics)

	return &recoveryFixture{
		service:   service,
		transport: transport,
		store:     store,
		snapshots: snapshots,
		bus:       bus,
		clock:     clk,
	}
}

func (f *recoveryFixture) seed(t *testing.T, id string, version int64) {
	t.Helper()
	vault, err := entities.VaultFromSnapshot(entities.Snapshot{
		ID: id, Version: version, Name: "Board Pack " + id, Status: "active",
	})
	require.NoError(t, err)
	require.NoError(t, f.store.Put(context.Background(), vault))
}

func (f *recoveryFixture) vaultVersion(t *testing.T, id string) int64 {
	t.Helper()
	vault := storedVault(t, f.store, id)
	return int64(vault.Version())
}

func (f *recoveryFixture) completions(t *testing.T) []events.RecoveryCompletedEvent {
	t.Helper()
	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	var completed []events.RecoveryCompletedEvent
	for _, event := range f.bus.published {
		if done, ok := event.(events.RecoveryCompletedEvent); ok {
			completed = append(completed, done)
		}
	}
	return completed
}

func TestRecovery_BeginSendsWatermarks(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	f.seed(t, "vault-2", 7)

	require.NoError(t, f.service.Begin(context.Background()))
	assert.True(t, f.service.Active())

	requests := f.transport.sentOfType(t, events.MessageSyncRequest)
	require.Len(t, requests, 1)

	env, err := events.ParseEnvelope(requests[0])
	require.NoError(t, err)
	var payload events.SyncRequestPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, map[string]int64{"vault-1": 3, "vault-2": 7}, payload.Watermarks)
}

func TestRecovery_MissedUpdatesFinishThePass(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	f.seed(t, "vault-2", 5)
	ctx := context.Background()

	require.NoError(t, f.service.Begin(ctx))
	require.NoError(t, f.service.HandleMissedUpdates(ctx, events.MissedUpdatesPayload{
		Updates: []events.VaultPayload{
			{ID: "vault-1", Version: 6, Name: "Board Pack vault-1", Status: "active"},
		},
		Deleted: []string{"vault-2"},
	}))

	assert.False(t, f.service.Active())
	assert.Equal(t, []events.DiffOrigin{events.OriginRecovery}, f.bus.diffOrigins())

	completed := f.completions(t)
	require.Len(t, completed, 1)
	assert.Equal(t, 1, completed[0].Applied)
	assert.Equal(t, 1, completed[0].Deleted)
	assert.False(t, completed[0].SnapshotUsed)
}

func TestRecovery_EmptyStoreGoesStraightToSnapshot(t *testing.T) {
	f := newRecoveryFixture(t)
	f.snapshots.snaps = []entities.Snapshot{
		{ID: "vault-1", Version: 2, Name: "Board Pack vault-1", Status: "active"},
	}

	require.NoError(t, f.service.Begin(context.Background()))

	// The pass completes inline, no SYNC_REQUEST goes out.
	assert.False(t, f.service.Active())
	assert.Empty(t, f.transport.sentOfType(t, events.MessageSyncRequest))
	assert.Equal(t, []events.DiffOrigin{events.OriginSnapshot}, f.bus.diffOrigins())

	completed := f.completions(t)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].SnapshotUsed)

	list, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecovery_SnapshotRequiredFlagTriggersRefresh(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	f.snapshots.snaps = []entities.Snapshot{
		{ID: "vault-1", Version: 9, Name: "Board Pack vault-1", Status: "active"},
	}
	ctx := context.Background()

	require.NoError(t, f.service.Begin(ctx))
	require.NoError(t, f.service.HandleMissedUpdates(ctx, events.MissedUpdatesPayload{
		SnapshotRequired: true,
	}))

	assert.False(t, f.service.Active())
	assert.Equal(t, []events.DiffOrigin{events.OriginSnapshot}, f.bus.diffOrigins())
	require.Len(t, f.completions(t), 1)
	assert.True(t, f.completions(t)[0].SnapshotUsed)
}

func TestRecovery_LateReplyAfterAbortIsDropped(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	ctx := context.Background()

	require.NoError(t, f.service.Begin(ctx))
	f.service.Abort("connection dropped")
	assert.False(t, f.service.Active())

	require.NoError(t, f.service.HandleMissedUpdates(ctx, events.MissedUpdatesPayload{
		Updates: []events.VaultPayload{
			{ID: "vault-1", Version: 9, Name: "Stale Reply", Status: "active"},
		},
	}))

	// Nothing applied, nothing published.
	assert.Equal(t, int64(3), f.vaultVersion(t, "vault-1"))
	assert.Empty(t, f.completions(t))
}

func TestRecovery_TimeoutFallsBackToSnapshot(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	f.snapshots.snaps = []entities.Snapshot{
		{ID: "vault-1", Version: 4, Name: "Board Pack vault-1", Status: "active"},
	}
	ctx := context.Background()

	require.NoError(t, f.service.Begin(ctx))
	assert.False(t, f.service.TimedOut(30*time.Second))

	f.clock.advance(31 * time.Second)
	assert.True(t, f.service.TimedOut(30*time.Second))

	require.NoError(t, f.service.FallbackToSnapshot(ctx))
	assert.False(t, f.service.Active())
	assert.False(t, f.service.TimedOut(30*time.Second))
	assert.Equal(t, int64(4), f.vaultVersion(t, "vault-1"))
	require.Len(t, f.completions(t), 1)
	assert.True(t, f.completions(t)[0].SnapshotUsed)
}

func TestRecovery_BeginWhileActiveConflicts(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	ctx := context.Background()

	require.NoError(t, f.service.Begin(ctx))
	err := f.service.Begin(ctx)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestRecovery_SendFailureFailsThePass(t *testing.T) {
	f := newRecoveryFixture(t)
	f.seed(t, "vault-1", 3)
	require.NoError(t, f.transport.Close())

	err := f.service.Begin(context.Background())
	require.Error(t, err)
	assert.False(t, f.service.Active())
}

func TestRecovery_FallbackWithoutPassConflicts(t *testing.T) {
	f := newRecoveryFixture(t)
	err := f.service.FallbackToSnapshot(context.Background())
	assert.True(t, pkgerrors.IsConflict(err))
}
