package events

import (
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
)

// DiffOrigin says which path produced a state diff.
type DiffOrigin string

const (
	OriginLive     DiffOrigin = "live"
	OriginRecovery DiffOrigin = "recovery"
	OriginSnapshot DiffOrigin = "snapshot"
)

// StateDiff is what consumers render from: the vaults created, updated and
// deleted by one apply batch. Empty diffs are never published.
type StateDiff struct {
	Created []entities.Snapshot `json:"created"`
	Updated []entities.Snapshot `json:"updated"`
	Deleted []string            `json:"deleted"`
}

// IsEmpty reports whether the diff changes nothing.
func (d StateDiff) IsEmpty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// Merge folds another diff into this one, preserving order.
func (d *StateDiff) Merge(other StateDiff) {
	d.Created = append(d.Created, other.Created...)
	d.Updated = append(d.Updated, other.Updated...)
	d.Deleted = append(d.Deleted, other.Deleted...)
}

// StateDiffEvent publishes a reconciliation result on the bus.
type StateDiffEvent struct {
	BaseEvent
	Origin DiffOrigin `json:"origin"`
	Diff   StateDiff  `json:"diff"`
}

// NewStateDiffEvent creates a StateDiffEvent
func NewStateDiffEvent(diff StateDiff, origin DiffOrigin, timestamp time.Time) StateDiffEvent {
	return StateDiffEvent{
		BaseEvent: BaseEvent{
			AggregateID: "vault-state",
			EventType:   TypeStateDiff,
			Timestamp:   timestamp,
			Version:     1,
		},
		Origin: origin,
		Diff:   diff,
	}
}
