package sync

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/application/presence"
	"github.com/aiborg-ai/appboardguru-sub011/application/queue"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// EngineConfig bounds the engine loop.
type EngineConfig struct {
	// RecoveryTimeout is how long a SYNC_REQUEST may go unanswered before
	// the pass falls back to a full snapshot refresh.
	RecoveryTimeout time.Duration
	// PendingBuffer caps the frames held back while recovery runs. On
	// overflow the oldest frame is dropped.
	PendingBuffer int
	// TickInterval drives ack timeouts, presence sweeps and the recovery
	// watchdog.
	TickInterval time.Duration
}

// DefaultEngineConfig returns the production engine bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RecoveryTimeout: 30 * time.Second,
		PendingBuffer:   1024,
		TickInterval:    time.Second,
	}
}

type submission struct {
	action actions.Action
	reply  chan error
}

// Engine is the single event loop at the heart of the sync core. Every
// inbound frame, connection transition, user action and timer tick funnels
// through it, so the validator, dedup filter, reconciler, recovery pass and
// queue all run on one goroutine and share state without locks.
type Engine struct {
	transport  ports.Transport
	validator  *Validator
	dedup      *DedupFilter
	reconciler *Reconciler
	recovery   *RecoveryService
	queue      *queue.Service
	presence   *presence.Tracker
	tokens     ports.TokenSource
	bus        ports.EventPublisher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Collector
	tracer     trace.Tracer
	config     EngineConfig

	submitCh chan submission
	pending  [][]byte

	// recovered flips true when a recovery pass completes for the current
	// connection. Until then inbound frames are held and the queue stays
	// parked; a failed pass retries on the next tick.
	recovered bool

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewEngine wires the loop. The tracer may be nil when tracing is off.
func NewEngine(
	transport ports.Transport,
	validator *Validator,
	dedup *DedupFilter,
	reconciler *Reconciler,
	recovery *RecoveryService,
	queueService *queue.Service,
	tracker *presence.Tracker,
	tokens ports.TokenSource,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracer trace.Tracer,
	config EngineConfig,
) *Engine {
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = DefaultEngineConfig().RecoveryTimeout
	}
	if config.PendingBuffer <= 0 {
		config.PendingBuffer = DefaultEngineConfig().PendingBuffer
	}
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultEngineConfig().TickInterval
	}
	return &Engine{
		transport:  transport,
		validator:  validator,
		dedup:      dedup,
		reconciler: reconciler,
		recovery:   recovery,
		queue:      queueService,
		presence:   tracker,
		tokens:     tokens,
		bus:        bus,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		config:     config,
		submitCh:   make(chan submission),
		done:       make(chan struct{}),
	}
}

// Start connects the transport and launches the loop. An engine starts
// once; after Stop it is spent.
func (e *Engine) Start(ctx context.Context) error {
	var startErr error
	started := false
	e.startOnce.Do(func() {
		started = true
		runCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel

		if err := e.transport.Connect(runCtx); err != nil {
			cancel()
			close(e.done)
			startErr = err
			return
		}

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer close(e.done)
			e.loop(runCtx)
		}()
	})
	if !started {
		return pkgerrors.NewConflict("engine already started")
	}
	return startErr
}

// Stop halts the loop and closes the transport.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return e.transport.Close()
}

// Submit queues a user action for delivery. The action is accepted even
// while offline; it rides the queue until the connection can carry it.
// Called by UI bindings and the bulk coordinator.
func (e *Engine) Submit(ctx context.Context, action actions.Action) error {
	sub := submission{action: action, reply: make(chan error, 1)}
	select {
	case e.submitCh <- sub:
	case <-e.done:
		return pkgerrors.NewUnavailable("sync engine stopped", nil)
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-sub.reply:
		return err
	case <-e.done:
		return pkgerrors.NewUnavailable("sync engine stopped", nil)
	}
}

// SendMessage builds an authenticated envelope and writes it straight to
// the transport. Used for messages that must not queue, like UNDO_REQUEST.
func (e *Engine) SendMessage(ctx context.Context, msgType events.MessageType, payload any) error {
	token, err := e.tokens.Current(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "fetching auth token")
	}
	env, err := events.NewEnvelope(msgType, payload, token, e.clock.Now())
	if err != nil {
		return err
	}
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	return e.transport.Send(ctx, frame)
}

// loop is the event loop. It owns all engine state.
func (e *Engine) loop(ctx context.Context) {
	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	e.logger.Info("sync engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sync engine stopped")
			return

		case raw := <-e.transport.Inbound():
			e.handleRaw(ctx, raw)

		case change := <-e.transport.StateChanges():
			e.handleStateChange(ctx, change)

		case sub := <-e.submitCh:
			err := e.queue.Enqueue(ctx, sub.action)
			sub.reply <- err
			if err == nil {
				e.pumpQueue(ctx)
			}

		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// handleRaw decides whether a frame is processed now or parked until
// recovery completes. MISSED_UPDATES and SESSION_EXPIRED always go
// through: the first is the recovery reply, the second is terminal.
func (e *Engine) handleRaw(ctx context.Context, raw []byte) {
	env, err := events.ParseEnvelope(raw)
	if err != nil {
		e.metrics.ValidationFailures.WithLabelValues("malformed").Inc()
		e.logger.Warn("dropping unparseable frame", zap.Error(err))
		return
	}

	if !e.recovered &&
		env.Type != events.MessageMissedUpdates &&
		env.Type != events.MessageSessionExpired {
		e.bufferFrame(raw)
		return
	}

	e.processFrame(ctx, raw)
}

// processFrame runs the full inbound pipeline: validation, dedup, routing.
func (e *Engine) processFrame(ctx context.Context, raw []byte) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "sync.process_frame")
		defer span.End()
	}

	msg, err := e.validator.Validate(raw)
	if err != nil {
		reason := validationFailureReason(err)
		e.metrics.ValidationFailures.WithLabelValues(reason).Inc()
		e.logger.Warn("message failed validation",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return
	}

	msgType := string(msg.Envelope.Type)
	e.metrics.MessagesReceived.WithLabelValues(msgType).Inc()

	if e.dedup.Seen(msg.Envelope.MessageID) {
		e.metrics.DuplicatesDropped.Inc()
		e.logger.Debug("duplicate message dropped",
			zap.String("message_id", msg.Envelope.MessageID),
			zap.String("type", msgType),
		)
		return
	}

	e.route(ctx, msg)
}

func (e *Engine) route(ctx context.Context, msg *Message) {
	switch msg.Envelope.Type {
	case events.MessageSessionExpired:
		payload, _ := msg.Payload.(events.SessionExpiredPayload)
		e.expireSession(ctx, payload.Reason)

	case events.MessageMissedUpdates:
		payload, ok := msg.Payload.(events.MissedUpdatesPayload)
		if !ok {
			return
		}
		e.afterRecoveryStep(ctx, e.recovery.HandleMissedUpdates(ctx, payload))

	case events.MessageActionResponse:
		result, ok := msg.Payload.(actions.Result)
		if !ok {
			return
		}
		handled, err := e.queue.HandleResponse(ctx, result)
		if err != nil {
			e.logger.Error("action response handling failed", zap.Error(err))
			return
		}
		if !handled {
			e.logger.Debug("action response matched nothing in flight",
				zap.String("action_id", result.ActionID))
			return
		}
		e.pumpQueue(ctx)

	case events.MessageUserTyping:
		if payload, ok := msg.Payload.(events.TypingPayload); ok {
			e.presence.HandleTyping(ctx, payload)
		}

	case events.MessageUserTypingStopped:
		if payload, ok := msg.Payload.(events.TypingPayload); ok {
			e.presence.HandleTypingStopped(ctx, payload)
		}

	case events.MessagePresenceChanged:
		if payload, ok := msg.Payload.(events.PresencePayload); ok {
			e.presence.HandlePresence(ctx, payload)
		}

	default:
		e.applyData(ctx, msg)
	}
}

// applyData reconciles an entity message into the replica and publishes
// the resulting diff.
func (e *Engine) applyData(ctx context.Context, msg *Message) {
	diff, err := e.reconciler.Apply(ctx, msg)
	if err != nil {
		e.logger.Error("apply failed",
			zap.String("type", string(msg.Envelope.Type)),
			zap.Error(err),
		)
		return
	}
	e.publishDiff(ctx, diff, events.OriginLive)
}

func (e *Engine) publishDiff(ctx context.Context, diff events.StateDiff, origin events.DiffOrigin) {
	if diff.IsEmpty() {
		return
	}
	if err := e.bus.Publish(ctx, events.NewStateDiffEvent(diff, origin, e.clock.Now())); err != nil {
		e.logger.Error("failed to publish state diff", zap.Error(err))
	}
}

func (e *Engine) handleStateChange(ctx context.Context, change ports.StateChange) {
	event := events.NewConnectionStateChangedEvent(string(change.Previous), string(change.Current), e.clock.Now())
	if err := e.bus.Publish(ctx, event); err != nil {
		e.logger.Error("failed to publish connection state", zap.Error(err))
	}

	switch change.Current {
	case ports.StateOpen:
		e.recovered = false
		e.beginRecovery(ctx)

	case ports.StateReconnecting:
		e.recovered = false
		if e.recovery.Active() {
			e.recovery.Abort("connection lost")
		}
		if dropped := len(e.pending); dropped > 0 {
			// Held-back frames belong to the dead connection; the next
			// recovery pass covers whatever they carried.
			e.pending = nil
			e.logger.Info("discarded held frames from dead connection", zap.Int("count", dropped))
		}
		e.queue.Interrupt(ctx)
	}
}

// beginRecovery starts a pass. The snapshot bootstrap path completes
// synchronously; the delta path stays active until MISSED_UPDATES arrives.
func (e *Engine) beginRecovery(ctx context.Context) {
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "sync.recovery")
		defer span.End()
	}
	e.afterRecoveryStep(ctx, e.recovery.Begin(ctx))
}

// afterRecoveryStep settles the engine after any recovery call. A failed
// pass leaves recovered false so frames keep buffering and the queue stays
// parked; the tick retries it while the connection is still OPEN.
func (e *Engine) afterRecoveryStep(ctx context.Context, err error) {
	if err != nil {
		e.logger.Error("recovery failed, will retry", zap.Error(err))
		return
	}
	if !e.recovery.Active() {
		e.recovered = true
		e.finishRecovery(ctx)
	}
}

func (e *Engine) tick(ctx context.Context) {
	if err := e.queue.CheckTimeout(ctx); err != nil {
		e.logger.Error("ack timeout handling failed", zap.Error(err))
	}
	e.presence.Sweep(ctx)

	if e.recovery.TimedOut(e.config.RecoveryTimeout) {
		e.logger.Warn("recovery timed out, refreshing from snapshot")
		e.afterRecoveryStep(ctx, e.recovery.FallbackToSnapshot(ctx))
	}

	// Retry a failed pass. The snapshot client's breaker keeps this from
	// hammering a dead endpoint.
	if !e.recovered && !e.recovery.Active() && e.transport.State() == ports.StateOpen {
		e.beginRecovery(ctx)
	}

	e.pumpQueue(ctx)
}

// finishRecovery drains the frames held back during the pass, in arrival
// order and through the full pipeline, then lets the queue replay.
func (e *Engine) finishRecovery(ctx context.Context) {
	held := e.pending
	e.pending = nil
	for _, raw := range held {
		e.processFrame(ctx, raw)
	}
	e.pumpQueue(ctx)
}

// pumpQueue pushes the queue head when the connection can carry it.
// Nothing moves until recovery completes: replay waits for a settled
// replica.
func (e *Engine) pumpQueue(ctx context.Context) {
	if !e.recovered || e.transport.State() != ports.StateOpen {
		return
	}
	if err := e.queue.Pump(ctx); err != nil {
		e.logger.Error("queue pump failed", zap.Error(err))
	}
}

func (e *Engine) bufferFrame(raw []byte) {
	if len(e.pending) >= e.config.PendingBuffer {
		e.pending = e.pending[1:]
		e.logger.Warn("pending buffer full, dropped oldest frame")
	}
	e.pending = append(e.pending, raw)
}

// expireSession reacts to the server invalidating the session: drop the
// cached token, park the transport in its terminal state and tell the
// host application it must reauthenticate.
func (e *Engine) expireSession(ctx context.Context, reason string) {
	if reason == "" {
		reason = "session expired by server"
	}
	e.logger.Warn("session expired", zap.String("reason", reason))

	e.tokens.Invalidate()
	if e.recovery.Active() {
		e.recovery.Abort("session expired")
	}
	e.pending = nil
	e.transport.ExpireSession()

	if err := e.bus.Publish(ctx, events.NewSessionExpiredEvent(reason, e.clock.Now())); err != nil {
		e.logger.Error("failed to publish session expiry", zap.Error(err))
	}
}

func validationFailureReason(err error) string {
	switch {
	case pkgerrors.IsMalformed(err):
		return "malformed"
	case pkgerrors.IsUnauthorized(err):
		return "unauthorized"
	case pkgerrors.IsSchemaViolation(err):
		return "schema"
	default:
		return "internal"
	}
}
