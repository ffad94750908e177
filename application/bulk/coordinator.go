// Package bulk coordinates multi-vault operations: it partitions targets
// into eligible and ineligible sets with user-facing reasons, demands a
// typed confirmation before destructive actions, enforces one operation in
// flight, and keeps an undo window open after archives.
//
// The coordinator never mutates entity state itself. Outcomes arrive as
// realtime messages like every other change and flow through the
// reconciler.
package bulk

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/clock"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
)

// Dispatcher is the slice of the sync engine the coordinator needs: queue
// an action for delivery, and send a protocol message directly.
type Dispatcher interface {
	Submit(ctx context.Context, action actions.Action) error
	SendMessage(ctx context.Context, msgType events.MessageType, payload any) error
}

// Config bounds bulk operations.
type Config struct {
	// UndoWindow is how long an archive stays reversible.
	UndoWindow time.Duration
	// MaxBatchSize caps the number of targets per operation.
	MaxBatchSize int
	// RetainCompleted is how long finished records stay queryable.
	RetainCompleted time.Duration
}

// DefaultConfig returns the production bulk bounds.
func DefaultConfig() Config {
	return Config{
		UndoWindow:      30 * time.Second,
		MaxBatchSize:    100,
		RetainCompleted: time.Hour,
	}
}

// Plan is the result of partitioning a bulk request: what will be sent,
// what is skipped and why, and what confirmation the UI must collect.
type Plan struct {
	ActionType           actions.ActionType `json:"actionType"`
	Eligible             []string           `json:"eligible"`
	Skipped              []actions.Skip     `json:"skipped"`
	RequiresConfirmation bool               `json:"requiresConfirmation"`
	ConfirmationPhrase   string             `json:"confirmationPhrase,omitempty"`
}

// Request names a bulk operation to execute.
type Request struct {
	ActionType   actions.ActionType
	TargetIDs    []string
	Options      map[string]any
	Confirmation string
}

// Coordinator runs bulk operations end to end.
type Coordinator struct {
	states     ports.StateStore
	operations ports.OperationStore
	dispatcher Dispatcher
	bus        ports.EventPublisher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Collector
	config     Config
}

// NewCoordinator creates a bulk coordinator.
func NewCoordinator(
	states ports.StateStore,
	operations ports.OperationStore,
	dispatcher Dispatcher,
	bus ports.EventPublisher,
	clk clock.Clock,
	logger *zap.Logger,
	metrics *observability.Collector,
	config Config,
) *Coordinator {
	if config.UndoWindow <= 0 {
		config.UndoWindow = DefaultConfig().UndoWindow
	}
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = DefaultConfig().MaxBatchSize
	}
	if config.RetainCompleted <= 0 {
		config.RetainCompleted = DefaultConfig().RetainCompleted
	}
	return &Coordinator{
		states:     states,
		operations: operations,
		dispatcher: dispatcher,
		bus:        bus,
		clock:      clk,
		logger:     logger,
		metrics:    metrics,
		config:     config,
	}
}

// Prepare partitions the targets without side effects, so the UI can show
// who is in, who is out and why before anything is sent.
func (c *Coordinator) Prepare(ctx context.Context, actionType actions.ActionType, targetIDs []string) (*Plan, error) {
	if !actionType.Valid() {
		return nil, pkgerrors.NewValidation("unknown action type " + string(actionType))
	}
	if len(targetIDs) == 0 {
		return nil, pkgerrors.NewValidation("no targets named")
	}
	if len(targetIDs) > c.config.MaxBatchSize {
		return nil, pkgerrors.NewValidation("too many targets for one operation")
	}

	plan := &Plan{
		ActionType:           actionType,
		RequiresConfirmation: actionType.Destructive(),
	}
	if plan.RequiresConfirmation {
		plan.ConfirmationPhrase = string(actionType)
	}

	for _, raw := range targetIDs {
		id, err := valueobjects.ParseVaultID(raw)
		if err != nil {
			plan.Skipped = append(plan.Skipped, actions.Skip{ID: raw, Reason: "invalid vault id"})
			continue
		}
		vault, err := c.states.Get(ctx, id)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				plan.Skipped = append(plan.Skipped, actions.Skip{ID: raw, Reason: "unknown vault"})
				continue
			}
			return nil, err
		}
		if reason, ok := ineligibleReason(actionType, vault.Status(), vault.Capabilities()); !ok {
			plan.Skipped = append(plan.Skipped, actions.Skip{ID: raw, Reason: reason})
			continue
		}
		plan.Eligible = append(plan.Eligible, raw)
	}

	return plan, nil
}

// Execute runs one bulk operation. Only the eligible partition is sent;
// the ineligible targets ride along in the record so the final summary
// shows every requested vault.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*ports.OperationRecord, error) {
	if _, err := c.operations.Active(ctx); err == nil {
		return nil, pkgerrors.NewConflict("another bulk operation is in progress")
	} else if !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	plan, err := c.Prepare(ctx, req.ActionType, req.TargetIDs)
	if err != nil {
		return nil, err
	}

	if plan.RequiresConfirmation && !strings.EqualFold(strings.TrimSpace(req.Confirmation), plan.ConfirmationPhrase) {
		return nil, pkgerrors.NewValidation("confirmation text does not match " + plan.ConfirmationPhrase)
	}

	now := c.clock.Now()
	record := &ports.OperationRecord{
		OperationID:    uuid.New().String(),
		ActionType:     string(req.ActionType),
		Status:         ports.OperationStatusPending,
		StartedAt:      now,
		SkippedUpfront: plan.Skipped,
	}

	if len(plan.Eligible) == 0 {
		// Nothing eligible is a successful no-op, not an error.
		completed := now
		record.Status = ports.OperationStatusCompleted
		record.CompletedAt = &completed
		record.Result = &actions.Result{Skipped: plan.Skipped}
		if err := c.operations.Store(ctx, record); err != nil {
			return nil, err
		}
		c.metrics.BulkOperations.WithLabelValues(string(req.ActionType), "noop").Inc()
		c.publishCompleted(ctx, record)
		return record, nil
	}

	targets := make([]valueobjects.VaultID, 0, len(plan.Eligible))
	for _, raw := range plan.Eligible {
		id, err := valueobjects.ParseVaultID(raw)
		if err != nil {
			return nil, pkgerrors.NewValidation(err.Error())
		}
		targets = append(targets, id)
	}

	action := actions.NewAction(req.ActionType, targets, req.Options, now)
	record.ActionID = action.ID
	if err := c.operations.Store(ctx, record); err != nil {
		return nil, err
	}

	if err := c.dispatcher.Submit(ctx, action); err != nil {
		record.Status = ports.OperationStatusFailed
		if uerr := c.operations.Update(ctx, record.OperationID, record); uerr != nil {
			c.logger.Error("failed to mark operation failed", zap.Error(uerr))
		}
		return nil, err
	}

	c.logger.Info("bulk operation dispatched",
		zap.String("operation_id", record.OperationID),
		zap.String("action_type", string(req.ActionType)),
		zap.Int("eligible", len(plan.Eligible)),
		zap.Int("skipped", len(plan.Skipped)),
	)
	return record, nil
}

// Status returns the record for an operation.
func (c *Coordinator) Status(ctx context.Context, operationID string) (*ports.OperationRecord, error) {
	return c.operations.Get(ctx, operationID)
}

// Undo reverses a completed archive while its undo window is open.
func (c *Coordinator) Undo(ctx context.Context, operationID string) error {
	record, err := c.operations.Get(ctx, operationID)
	if err != nil {
		return err
	}
	if record.Status != ports.OperationStatusCompleted {
		return pkgerrors.NewConflict("operation is not in a completed state")
	}
	if record.UndoableUntil == nil {
		return pkgerrors.NewValidation("operation does not support undo")
	}
	if c.clock.Now().After(*record.UndoableUntil) {
		return pkgerrors.NewValidation("undo window has closed")
	}

	payload := events.UndoRequestPayload{OperationID: operationID}
	if err := c.dispatcher.SendMessage(ctx, events.MessageUndoRequest, payload); err != nil {
		return err
	}

	record.Status = ports.OperationStatusUndone
	if err := c.operations.Update(ctx, operationID, record); err != nil {
		return err
	}

	c.metrics.BulkOperations.WithLabelValues(record.ActionType, "undone").Inc()
	event := events.NewBulkUndoRequestedEvent(operationID, record.ActionType, c.clock.Now())
	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish undo request", zap.Error(err))
	}
	c.logger.Info("bulk operation undo requested", zap.String("operation_id", operationID))
	return nil
}

// Handle finalizes operations from queue outcomes. The coordinator
// subscribes to action lifecycle events and matches them by ActionID.
func (c *Coordinator) Handle(ctx context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.ActionAckedEvent:
		return c.finalizeAcked(ctx, e.Result)
	case events.ActionRolledBackEvent:
		return c.finalizeTerminal(ctx, e.ActionID, e.Reason)
	case events.ActionFailedEvent:
		return c.finalizeTerminal(ctx, e.ActionID, e.Reason)
	}
	return nil
}

// CanHandle reports which events the coordinator consumes.
func (c *Coordinator) CanHandle(eventType string) bool {
	switch eventType {
	case events.TypeActionAcked, events.TypeActionRolledBack, events.TypeActionFailed:
		return true
	}
	return false
}

func (c *Coordinator) finalizeAcked(ctx context.Context, result actions.Result) error {
	record, ok := c.findByActionID(ctx, result.ActionID)
	if !ok {
		return nil
	}

	now := c.clock.Now()
	record.Status = ports.OperationStatusCompleted
	record.CompletedAt = &now
	merged := result
	merged.Skipped = append(append([]actions.Skip(nil), record.SkippedUpfront...), result.Skipped...)
	record.Result = &merged

	if actions.ActionType(record.ActionType) == actions.TypeArchive && len(result.Succeeded) > 0 {
		until := now.Add(c.config.UndoWindow)
		record.UndoableUntil = &until
	}

	if err := c.operations.Update(ctx, record.OperationID, record); err != nil {
		return err
	}

	outcome := "completed"
	if len(result.Succeeded) == 0 {
		outcome = "failed"
	} else if len(result.Failed) > 0 {
		outcome = "partial"
	}
	c.metrics.BulkOperations.WithLabelValues(record.ActionType, outcome).Inc()
	c.publishCompleted(ctx, record)

	if err := c.operations.CleanupExpired(ctx, c.config.RetainCompleted); err != nil {
		c.logger.Warn("operation cleanup failed", zap.Error(err))
	}
	return nil
}

func (c *Coordinator) finalizeTerminal(ctx context.Context, actionID, reason string) error {
	record, ok := c.findByActionID(ctx, actionID)
	if !ok {
		return nil
	}

	now := c.clock.Now()
	record.Status = ports.OperationStatusFailed
	record.CompletedAt = &now
	if err := c.operations.Update(ctx, record.OperationID, record); err != nil {
		return err
	}

	c.metrics.BulkOperations.WithLabelValues(record.ActionType, "failed").Inc()
	c.publishCompleted(ctx, record)
	c.logger.Warn("bulk operation failed",
		zap.String("operation_id", record.OperationID),
		zap.String("reason", reason),
	)
	return nil
}

// findByActionID locates the pending operation an action belongs to.
func (c *Coordinator) findByActionID(ctx context.Context, actionID string) (*ports.OperationRecord, bool) {
	record, err := c.operations.Active(ctx)
	if err != nil || record.ActionID != actionID {
		return nil, false
	}
	return record, true
}

func (c *Coordinator) publishCompleted(ctx context.Context, record *ports.OperationRecord) {
	var succeeded, failed, skipped int
	if record.Result != nil {
		succeeded = len(record.Result.Succeeded)
		failed = len(record.Result.Failed)
		skipped = len(record.Result.Skipped)
	} else {
		skipped = len(record.SkippedUpfront)
	}
	event := events.NewBulkOperationCompletedEvent(
		record.OperationID,
		record.ActionType,
		succeeded,
		failed,
		skipped,
		record.UndoableUntil,
		c.clock.Now(),
	)
	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish bulk completion", zap.Error(err))
	}
}

// ineligibleReason explains why a vault cannot take part in an operation.
func ineligibleReason(actionType actions.ActionType, status valueobjects.VaultStatus, caps valueobjects.Capabilities) (string, bool) {
	if actionType == actions.TypeArchive && status == valueobjects.StatusInactive {
		return "vault is already archived", false
	}
	if operation := actionType.CapabilityOperation(); operation != "" && !caps.Allows(operation) {
		switch actionType {
		case actions.TypeArchive:
			return "you do not have permission to archive this vault", false
		case actions.TypeShare:
			return "you do not have permission to share this vault", false
		case actions.TypeExport:
			return "export is not enabled for this vault", false
		}
	}
	return "", true
}
