// Package actions defines user-initiated operations that travel through the
// offline queue and the bulk coordinator, plus their wire request/response
// shapes.
package actions

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
)

// ActionType identifies what the user asked for.
type ActionType string

const (
	TypeArchive   ActionType = "archive"
	TypeShare     ActionType = "share"
	TypeExport    ActionType = "export"
	TypeRename    ActionType = "rename"
	TypeSetStatus ActionType = "set_status"
)

// Valid reports whether the action type is known.
func (t ActionType) Valid() bool {
	switch t {
	case TypeArchive, TypeShare, TypeExport, TypeRename, TypeSetStatus:
		return true
	}
	return false
}

// Destructive reports whether the action requires typed confirmation when
// run as a bulk operation. Archiving takes vaults away from members, so it
// is the destructive one.
func (t ActionType) Destructive() bool {
	return t == TypeArchive
}

// CapabilityOperation maps the action type onto the vault capability flag
// that gates it. Empty means the action is not capability-gated.
func (t ActionType) CapabilityOperation() string {
	switch t {
	case TypeArchive:
		return valueobjects.OperationArchive
	case TypeShare:
		return valueobjects.OperationShare
	case TypeExport:
		return valueobjects.OperationExport
	}
	return ""
}

// State tracks an action through the queue lifecycle.
type State string

const (
	StatePending  State = "pending"
	StateInFlight State = "inflight"
	StateAcked    State = "acked"
	StateRejected State = "rejected"
	StateFailed   State = "failed"
)

// Action is a queued user operation. IDs are ULIDs so lexical order matches
// enqueue order, which keeps the FIFO replay stable across restarts.
type Action struct {
	ID         string                 `json:"actionId"`
	Type       ActionType             `json:"actionType"`
	TargetIDs  []valueobjects.VaultID `json:"targetIds"`
	Options    map[string]any         `json:"options,omitempty"`
	EnqueuedAt time.Time              `json:"enqueuedAt"`
	Attempts   int                    `json:"attempts"`
	State      State                  `json:"state"`
}

// NewAction builds a pending action with a fresh ULID.
func NewAction(actionType ActionType, targetIDs []valueobjects.VaultID, options map[string]any, now time.Time) Action {
	return Action{
		ID:         ulid.Make().String(),
		Type:       actionType,
		TargetIDs:  append([]valueobjects.VaultID(nil), targetIDs...),
		Options:    options,
		EnqueuedAt: now,
		State:      StatePending,
	}
}

// Request is the wire shape sent as an ACTION_REQUEST payload. The ActionID
// is reused across retries so the server can deduplicate replays.
type Request struct {
	ActionID   string         `json:"actionId" validate:"required"`
	ActionType string         `json:"actionType" validate:"required"`
	TargetIDs  []string       `json:"targetIds" validate:"required,min=1"`
	Options    map[string]any `json:"options,omitempty"`
}

// Request converts the action to its wire shape.
func (a Action) Request() Request {
	ids := make([]string, 0, len(a.TargetIDs))
	for _, id := range a.TargetIDs {
		ids = append(ids, id.String())
	}
	return Request{
		ActionID:   a.ID,
		ActionType: string(a.Type),
		TargetIDs:  ids,
		Options:    a.Options,
	}
}

// Failure names a target the server could not act on.
type Failure struct {
	ID     string `json:"id" validate:"required"`
	Reason string `json:"reason"`
}

// Skip names a target that was never attempted, with the reason shown to
// the user.
type Skip struct {
	ID     string `json:"id" validate:"required"`
	Reason string `json:"reason"`
}

// Result is the ACTION_RESPONSE payload. Partial failure is a normal
// result, not an error.
type Result struct {
	ActionID  string    `json:"actionId" validate:"required"`
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed" validate:"dive"`
	Skipped   []Skip    `json:"skipped" validate:"dive"`
}

// Rejected reports whether the server turned the action down outright:
// nothing succeeded and at least one target failed.
func (r Result) Rejected() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}

// RejectionReason returns the first failure reason, used when rolling back
// an optimistic update.
func (r Result) RejectionReason() string {
	if len(r.Failed) == 0 {
		return ""
	}
	return r.Failed[0].Reason
}
