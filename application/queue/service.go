// Package queue implements the offline action queue: user operations are
// persisted in FIFO order and replayed one at a time once the connection
// and recovery allow, with acknowledgement tracking, bounded retries and
// optimistic-update rollback on rejection.
package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Config bounds the replay behavior.
type Config struct {
	// AckTimeout is how long a sent action waits for its ACTION_RESPONSE
	// before the attempt counts as failed.
	AckTimeout time.Duration
	// MaxAttempts is the total number of sends (first try included) before
	// an action is parked as failed.
	MaxAttempts int
}

// DefaultConfig returns the production replay bounds.
func DefaultConfig() Config {
	return Config{
		AckTimeout:  10 * time.Second,
		MaxAttempts: 3,
	}
}

// Service is the queue state machine. Every user action passes through it:
// while the transport is open and nothing is awaiting an ack, the head is
// sent immediately, so the queue doubles as the single ack-tracking path
// for live sends.
//
// The engine sequences all calls on its loop; the service keeps no locks.
type Service struct {
	store     ports.ActionQueueStore
	transport ports.Transport
	tokens    ports.TokenSource
	bus       ports.EventPublisher
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Collector
	config    Config

	awaitingID string
	sentAt     time.Time
}

// NewService creates the queue service.
func NewService(
	store ports.ActionQueueStore,
	transport ports.Transport,
	tokens ports.TokenSource,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
	config Config,
) *Service {
	if config.AckTimeout <= 0 {
		config.AckTimeout = DefaultConfig().AckTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	return &Service{
		store:     store,
		transport: transport,
		tokens:    tokens,
		bus:       bus,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
		config:    config,
	}
}

// Enqueue appends an action and announces it so the UI can render the
// optimistic change with a pending-sync marker. The queue itself never
// touches vault state.
func (s *Service) Enqueue(ctx context.Context, action actions.Action) error {
	if !action.Type.Valid() {
		return pkgerrors.NewValidation("unknown action type " + string(action.Type))
	}
	if len(action.TargetIDs) == 0 {
		return pkgerrors.NewValidation("action names no targets")
	}

	if err := s.store.Append(ctx, action); err != nil {
		return err
	}
	s.updateDepthGauge(ctx)

	if err := s.bus.Publish(ctx, events.NewActionQueuedEvent(action, s.clock.Now())); err != nil {
		s.logger.Error("failed to publish action queued", zap.Error(err))
	}

	s.logger.Debug("action queued",
		zap.String("action_id", action.ID),
		zap.String("action_type", string(action.Type)),
		zap.Int("targets", len(action.TargetIDs)),
	)
	return nil
}

// Pump sends the head action when the line is free. It does nothing when
// an ack is outstanding, the queue is empty, or the transport is not open;
// the engine pumps again when any of that changes.
func (s *Service) Pump(ctx context.Context) error {
	if s.awaitingID != "" {
		return nil
	}

	head, err := s.store.Head(ctx)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	head.Attempts++
	head.State = actions.StateInFlight
	if err := s.store.Update(ctx, *head); err != nil {
		return err
	}

	if err := s.send(ctx, *head); err != nil {
		// The action stays at the head; the next pump retries the send.
		head.State = actions.StatePending
		if uerr := s.store.Update(ctx, *head); uerr != nil {
			s.logger.Error("failed to reset action state", zap.Error(uerr))
		}
		if pkgerrors.IsNotConnected(err) {
			return nil
		}
		return err
	}

	s.awaitingID = head.ID
	s.sentAt = s.clock.Now()
	s.logger.Info("action sent",
		zap.String("action_id", head.ID),
		zap.String("action_type", string(head.Type)),
		zap.Int("attempt", head.Attempts),
	)
	return nil
}

// HandleResponse settles the in-flight action against an ACTION_RESPONSE.
// It reports false when the response belongs to someone else (a bulk
// operation), so the engine can route it onward.
func (s *Service) HandleResponse(ctx context.Context, result actions.Result) (bool, error) {
	if s.awaitingID == "" || result.ActionID != s.awaitingID {
		return false, nil
	}
	s.awaitingID = ""

	if result.Rejected() {
		if err := s.store.Remove(ctx, result.ActionID); err != nil {
			return true, err
		}
		s.updateDepthGauge(ctx)
		s.metrics.ActionsReplayed.WithLabelValues("rejected").Inc()

		event := events.NewActionRolledBackEvent(result.ActionID, result.RejectionReason(), s.clock.Now())
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish rollback", zap.Error(err))
		}
		s.logger.Warn("action rejected, rolling back optimistic update",
			zap.String("action_id", result.ActionID),
			zap.String("reason", result.RejectionReason()),
		)
		return true, nil
	}

	if err := s.store.Remove(ctx, result.ActionID); err != nil {
		return true, err
	}
	s.updateDepthGauge(ctx)
	s.metrics.ActionsReplayed.WithLabelValues("acked").Inc()

	if err := s.bus.Publish(ctx, events.NewActionAckedEvent(result, s.clock.Now())); err != nil {
		s.logger.Error("failed to publish ack", zap.Error(err))
	}
	s.logger.Info("action acknowledged",
		zap.String("action_id", result.ActionID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	return true, nil
}

// CheckTimeout handles a missed ack. Below the attempt limit the action
// stays at the head for the next pump to resend, reusing its ActionID so
// the server can dedupe a reply that crossed the timeout. At the limit
// the action is parked as failed and the queue advances.
func (s *Service) CheckTimeout(ctx context.Context) error {
	if s.awaitingID == "" || s.clock.Now().Sub(s.sentAt) <= s.config.AckTimeout {
		return nil
	}

	actionID := s.awaitingID
	s.awaitingID = ""

	head, err := s.store.Head(ctx)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	if head.ID != actionID {
		return nil
	}

	if head.Attempts >= s.config.MaxAttempts {
		head.State = actions.StateFailed
		if err := s.store.Park(ctx, *head); err != nil {
			return err
		}
		s.updateDepthGauge(ctx)
		s.metrics.ActionsReplayed.WithLabelValues("failed").Inc()

		event := events.NewActionFailedEvent(head.ID, head.Attempts, "no acknowledgement from server", s.clock.Now())
		if err := s.bus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish action failure", zap.Error(err))
		}
		s.logger.Error("action failed after retries",
			zap.String("action_id", head.ID),
			zap.Int("attempts", head.Attempts),
		)
		return nil
	}

	head.State = actions.StatePending
	if err := s.store.Update(ctx, *head); err != nil {
		return err
	}
	s.logger.Warn("ack timed out, will resend",
		zap.String("action_id", head.ID),
		zap.Int("attempts", head.Attempts),
	)
	return nil
}

// Interrupt clears the in-flight marker after a connection drop. The
// action stays queued and replays with the same ActionID once recovery
// finishes on the next session.
func (s *Service) Interrupt(ctx context.Context) {
	if s.awaitingID == "" {
		return
	}
	actionID := s.awaitingID
	s.awaitingID = ""

	head, err := s.store.Head(ctx)
	if err != nil || head.ID != actionID {
		return
	}
	head.State = actions.StatePending
	if err := s.store.Update(ctx, *head); err != nil {
		s.logger.Error("failed to reset in-flight action", zap.Error(err))
	}
}

// Awaiting reports whether an ack is outstanding.
func (s *Service) Awaiting() bool {
	return s.awaitingID != ""
}

// Depth returns the number of queued actions.
func (s *Service) Depth(ctx context.Context) (int, error) {
	return s.store.Depth(ctx)
}

func (s *Service) send(ctx context.Context, action actions.Action) error {
	token, err := s.tokens.Current(ctx)
	if err != nil {
		return err
	}
	env, err := events.NewEnvelope(events.MessageActionRequest, action.Request(), token, s.clock.Now())
	if err != nil {
		return err
	}
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, frame)
}

func (s *Service) updateDepthGauge(ctx context.Context) {
	depth, err := s.store.Depth(ctx)
	if err != nil {
		return
	}
	s.metrics.QueueDepth.Set(float64(depth))
}
