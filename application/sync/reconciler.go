package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Reconciler converges the local vault replicas toward the server's state.
// Every apply is gated on the entity version: only strictly newer updates
// win, older or equal ones are discarded without error. Appliers are
// idempotent, so replaying a message yields an empty diff.
//
// All methods run on the engine loop; the reconciler itself holds no locks.
type Reconciler struct {
	store   ports.StateStore
	clock   clock.Clock
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewReconciler creates a reconciler over the given state store.
func NewReconciler(store ports.StateStore, clk clock.Clock, logger *zap.Logger, metrics *observability.Collector) *Reconciler {
	return &Reconciler{
		store:   store,
		clock:   clk,
		logger:  logger,
		metrics: metrics,
	}
}

// Apply routes a validated message to its applier and returns the diff of
// what actually changed. An empty diff means the message was absorbed
// without effect (stale, repeat delete, unknown partial target).
func (r *Reconciler) Apply(ctx context.Context, msg *Message) (events.StateDiff, error) {
	start := r.clock.Now()
	defer func() {
		r.metrics.ObserveApply(r.clock.Now().Sub(start))
	}()

	switch payload := msg.Payload.(type) {
	case events.VaultPayload:
		return r.applyUpsert(ctx, payload)
	case events.EntityDeletedPayload:
		return r.applyDelete(ctx, payload.EntityID)
	case events.StatusChangedPayload:
		return r.applyStatus(ctx, payload)
	case events.FieldDeltaPayload:
		return r.applyDelta(ctx, payload.EntityID, payload.Version, payload.Fields)
	case events.BulkActivitiesPayload:
		return r.applyBulk(ctx, payload)
	}
	return events.StateDiff{}, pkgerrors.NewInternal("no apply path for message type "+string(msg.Envelope.Type), nil)
}

// ApplyMissed applies a recovery response: current state for every vault
// that changed past the watermarks, plus ids deleted in the meantime.
func (r *Reconciler) ApplyMissed(ctx context.Context, payload events.MissedUpdatesPayload) (events.StateDiff, error) {
	var diff events.StateDiff
	for _, update := range payload.Updates {
		d, err := r.applyUpsert(ctx, update)
		if err != nil {
			return diff, err
		}
		diff.Merge(d)
	}
	for _, id := range payload.Deleted {
		d, err := r.applyDelete(ctx, id)
		if err != nil {
			return diff, err
		}
		diff.Merge(d)
	}
	return diff, nil
}

// ApplySnapshot swaps the whole store for a fresh full-state snapshot and
// returns the diff between the old replicas and the new ones, so consumers
// see a snapshot refresh the same way they see live updates.
func (r *Reconciler) ApplySnapshot(ctx context.Context, snaps []entities.Snapshot) (events.StateDiff, error) {
	var diff events.StateDiff

	current, err := r.store.List(ctx)
	if err != nil {
		return diff, err
	}
	previous := make(map[string]*entities.Vault, len(current))
	for _, vault := range current {
		previous[vault.ID().String()] = vault
	}

	vaults := make([]*entities.Vault, 0, len(snaps))
	incoming := make(map[string]bool, len(snaps))
	for _, snap := range snaps {
		vault, err := entities.VaultFromSnapshot(snap)
		if err != nil {
			return diff, pkgerrors.Wrap(err, "snapshot row rejected")
		}
		vaults = append(vaults, vault)
		incoming[snap.ID] = true

		if prior, ok := previous[snap.ID]; !ok {
			diff.Created = append(diff.Created, vault.Snapshot())
		} else if prior.Version() != vault.Version() {
			diff.Updated = append(diff.Updated, vault.Snapshot())
		}
	}

	for id := range previous {
		if !incoming[id] {
			diff.Deleted = append(diff.Deleted, id)
		}
	}

	if err := r.store.ReplaceAll(ctx, vaults); err != nil {
		return events.StateDiff{}, err
	}

	return diff, nil
}

// applyUpsert handles full-state rows: ENTITY_CREATED, ENTITY_UPDATED and
// missed-update entries. Create and update collapse into one path because
// a redelivered create for a known vault is just an update candidate.
func (r *Reconciler) applyUpsert(ctx context.Context, payload events.VaultPayload) (events.StateDiff, error) {
	var diff events.StateDiff

	id, err := valueobjects.ParseVaultID(payload.ID)
	if err != nil {
		return diff, pkgerrors.NewValidation(err.Error())
	}

	current, err := r.store.Get(ctx, id)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			return diff, err
		}
		vault, err := entities.VaultFromSnapshot(payload.Snapshot())
		if err != nil {
			return diff, err
		}
		if err := r.store.Put(ctx, vault); err != nil {
			return diff, err
		}
		diff.Created = append(diff.Created, vault.Snapshot())
		return diff, nil
	}

	version := valueobjects.Version(payload.Version)
	if !version.NewerThan(current.Version()) {
		r.discardStale(id, current.Version(), version)
		return diff, nil
	}

	vault, err := entities.VaultFromSnapshot(payload.Snapshot())
	if err != nil {
		return diff, err
	}
	if err := r.store.Put(ctx, vault); err != nil {
		return diff, err
	}
	diff.Updated = append(diff.Updated, vault.Snapshot())
	return diff, nil
}

// applyDelete removes a replica. Deletions carry no version and always
// win; deleting an unknown id changes nothing.
func (r *Reconciler) applyDelete(ctx context.Context, rawID string) (events.StateDiff, error) {
	var diff events.StateDiff

	id, err := valueobjects.ParseVaultID(rawID)
	if err != nil {
		return diff, pkgerrors.NewValidation(err.Error())
	}

	if _, err := r.store.Get(ctx, id); err != nil {
		if pkgerrors.IsNotFound(err) {
			return diff, nil
		}
		return diff, err
	}

	if err := r.store.Delete(ctx, id); err != nil {
		return diff, err
	}
	diff.Deleted = append(diff.Deleted, id.String())
	return diff, nil
}

func (r *Reconciler) applyStatus(ctx context.Context, payload events.StatusChangedPayload) (events.StateDiff, error) {
	var diff events.StateDiff

	id, err := valueobjects.ParseVaultID(payload.EntityID)
	if err != nil {
		return diff, pkgerrors.NewValidation(err.Error())
	}

	current, err := r.store.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			r.discardUnknown(id, "status change")
			return diff, nil
		}
		return diff, err
	}

	version := valueobjects.Version(payload.Version)
	if !version.NewerThan(current.Version()) {
		r.discardStale(id, current.Version(), version)
		return diff, nil
	}

	status, err := valueobjects.ParseVaultStatus(payload.Status)
	if err != nil {
		return diff, pkgerrors.NewValidation(err.Error())
	}
	if err := current.ApplyStatus(status, version); err != nil {
		return diff, err
	}
	if err := r.store.Put(ctx, current); err != nil {
		return diff, err
	}
	diff.Updated = append(diff.Updated, current.Snapshot())
	return diff, nil
}

// applyDelta merges only the named fields into the replica. A partial
// update cannot create a vault, so unknown targets are dropped and left
// for recovery to converge.
func (r *Reconciler) applyDelta(ctx context.Context, rawID string, rawVersion int64, fields entities.Patch) (events.StateDiff, error) {
	var diff events.StateDiff

	id, err := valueobjects.ParseVaultID(rawID)
	if err != nil {
		return diff, pkgerrors.NewValidation(err.Error())
	}

	current, err := r.store.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			r.discardUnknown(id, "field delta")
			return diff, nil
		}
		return diff, err
	}

	version := valueobjects.Version(rawVersion)
	if !version.NewerThan(current.Version()) {
		r.discardStale(id, current.Version(), version)
		return diff, nil
	}

	if err := current.ApplyPatch(fields, version); err != nil {
		return diff, err
	}
	if err := r.store.Put(ctx, current); err != nil {
		return diff, err
	}
	diff.Updated = append(diff.Updated, current.Snapshot())
	return diff, nil
}

// applyBulk applies a batch of activity deltas in payload order and
// returns one combined diff.
func (r *Reconciler) applyBulk(ctx context.Context, payload events.BulkActivitiesPayload) (events.StateDiff, error) {
	var diff events.StateDiff
	for _, item := range payload.Activities {
		d, err := r.applyDelta(ctx, item.EntityID, item.Version, item.Fields)
		if err != nil {
			return diff, err
		}
		diff.Merge(d)
	}
	return diff, nil
}

func (r *Reconciler) discardStale(id valueobjects.VaultID, stored, incoming valueobjects.Version) {
	r.metrics.StaleUpdates.Inc()
	r.logger.Debug("stale update discarded",
		zap.String("vault_id", id.String()),
		zap.Int64("stored_version", stored.Int64()),
		zap.Int64("incoming_version", incoming.Int64()),
	)
}

func (r *Reconciler) discardUnknown(id valueobjects.VaultID, kind string) {
	r.logger.Debug("partial update for unknown vault discarded",
		zap.String("vault_id", id.String()),
		zap.String("update", kind),
	)
}
