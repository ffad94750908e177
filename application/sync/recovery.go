package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// RecoveryService closes the update gap after a reconnect. It sends the
// store's watermarks as a SYNC_REQUEST and applies the MISSED_UPDATES
// reply; when there are no watermarks yet, or the server flags the gap as
// too large, it falls back to a full snapshot refresh.
//
// The engine drives the service: Begin on the OPEN transition, then
// HandleMissedUpdates when the reply arrives. All methods run on the
// engine loop.
type RecoveryService struct {
	transport  ports.Transport
	store      ports.StateStore
	reconciler *Reconciler
	snapshots  ports.SnapshotClient
	tokens     ports.TokenSource
	bus        ports.EventPublisher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Collector

	active    bool
	startedAt time.Time
}

// NewRecoveryService creates a recovery service.
func NewRecoveryService(
	transport ports.Transport,
	store ports.StateStore,
	reconciler *Reconciler,
	snapshots ports.SnapshotClient,
	tokens ports.TokenSource,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
) *RecoveryService {
	return &RecoveryService{
		transport:  transport,
		store:      store,
		reconciler: reconciler,
		snapshots:  snapshots,
		tokens:     tokens,
		bus:        bus,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
	}
}

// Active reports whether a recovery pass is in progress. While true, the
// engine holds live messages back so recovered state lands first.
func (s *RecoveryService) Active() bool {
	return s.active
}

// Begin starts one recovery pass. With watermarks it sends a SYNC_REQUEST
// and leaves the pass open until the reply arrives; without any it runs
// the snapshot path to completion right away.
func (s *RecoveryService) Begin(ctx context.Context) error {
	if s.active {
		return pkgerrors.NewConflict("recovery already in progress")
	}
	s.active = true
	s.startedAt = s.clock.Now()

	marks, err := s.store.Watermarks(ctx)
	if err != nil {
		return s.fail(err)
	}

	if len(marks) == 0 {
		s.logger.Info("no watermarks, requesting full snapshot")
		diff, err := s.refreshFromSnapshot(ctx)
		if err != nil {
			return s.fail(err)
		}
		s.complete(ctx, diff, events.OriginSnapshot, true)
		return nil
	}

	token, err := s.tokens.Current(ctx)
	if err != nil {
		return s.fail(err)
	}
	env, err := events.NewEnvelope(events.MessageSyncRequest, events.SyncRequestPayload{Watermarks: marks}, token, s.clock.Now())
	if err != nil {
		return s.fail(err)
	}
	frame, err := env.Encode()
	if err != nil {
		return s.fail(err)
	}
	if err := s.transport.Send(ctx, frame); err != nil {
		return s.fail(err)
	}

	s.logger.Info("sync request sent", zap.Int("watermarks", len(marks)))
	return nil
}

// HandleMissedUpdates applies the server's recovery reply and finishes
// the pass.
func (s *RecoveryService) HandleMissedUpdates(ctx context.Context, payload events.MissedUpdatesPayload) error {
	if !s.active {
		// A late reply after abort; the next pass will re-request.
		s.logger.Warn("missed updates arrived outside recovery, dropped")
		return nil
	}

	if payload.SnapshotRequired {
		s.logger.Info("update gap too large, requesting full snapshot")
		diff, err := s.refreshFromSnapshot(ctx)
		if err != nil {
			return s.fail(err)
		}
		s.complete(ctx, diff, events.OriginSnapshot, true)
		return nil
	}

	diff, err := s.reconciler.ApplyMissed(ctx, payload)
	if err != nil {
		return s.fail(err)
	}
	s.complete(ctx, diff, events.OriginRecovery, false)
	return nil
}

// Abort cancels an in-progress pass after the connection drops. The next
// OPEN transition starts a fresh pass.
func (s *RecoveryService) Abort(reason string) {
	if !s.active {
		return
	}
	s.active = false
	s.metrics.ObserveRecovery("failed", s.clock.Now().Sub(s.startedAt))
	s.logger.Warn("recovery aborted", zap.String("reason", reason))
}

// TimedOut reports whether the pass has been waiting longer than the
// given timeout.
func (s *RecoveryService) TimedOut(timeout time.Duration) bool {
	return s.active && s.clock.Now().Sub(s.startedAt) > timeout
}

// FallbackToSnapshot finishes a pass whose SYNC_REQUEST went unanswered by
// refreshing from the snapshot endpoint instead.
func (s *RecoveryService) FallbackToSnapshot(ctx context.Context) error {
	if !s.active {
		return pkgerrors.NewConflict("no recovery in progress")
	}
	diff, err := s.refreshFromSnapshot(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.complete(ctx, diff, events.OriginSnapshot, true)
	return nil
}

func (s *RecoveryService) refreshFromSnapshot(ctx context.Context) (events.StateDiff, error) {
	snaps, err := s.snapshots.FetchSnapshot(ctx)
	if err != nil {
		return events.StateDiff{}, err
	}
	return s.reconciler.ApplySnapshot(ctx, snaps)
}

func (s *RecoveryService) fail(err error) error {
	s.active = false
	s.metrics.ObserveRecovery("failed", s.clock.Now().Sub(s.startedAt))
	return pkgerrors.Wrap(err, "recovery failed")
}

func (s *RecoveryService) complete(ctx context.Context, diff events.StateDiff, origin events.DiffOrigin, snapshotUsed bool) {
	duration := s.clock.Now().Sub(s.startedAt)
	s.active = false

	outcome := "delta"
	if snapshotUsed {
		outcome = "snapshot"
	}
	s.metrics.ObserveRecovery(outcome, duration)

	if !diff.IsEmpty() {
		if err := s.bus.Publish(ctx, events.NewStateDiffEvent(diff, origin, s.clock.Now())); err != nil {
			s.logger.Error("failed to publish recovery diff", zap.Error(err))
		}
	}

	applied := len(diff.Created) + len(diff.Updated)
	event := events.NewRecoveryCompletedEvent(applied, len(diff.Deleted), snapshotUsed, duration, s.clock.Now())
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish recovery completion", zap.Error(err))
	}

	s.logger.Info("recovery completed",
		zap.Int("applied", applied),
		zap.Int("deleted", len(diff.Deleted)),
		zap.Bool("snapshot_used", snapshotUsed),
		zap.Duration("duration", duration),
	)
}
