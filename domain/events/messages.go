package events

import (
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/entities"
)

// VaultPayload is the full entity state carried by ENTITY_CREATED,
// ENTITY_UPDATED and missed-update rows.
type VaultPayload struct {
	ID           string    `json:"id" validate:"required"`
	Version      int64     `json:"version" validate:"gt=0"`
	Name         string    `json:"name"`
	MemberCount  int       `json:"memberCount" validate:"gte=0"`
	Status       string    `json:"status" validate:"required,oneof=active pending inactive"`
	Tags         []string  `json:"tags"`
	LastActivity time.Time `json:"lastActivity"`
	CanExport    bool      `json:"canExport"`
	CanArchive   bool      `json:"canArchive"`
	CanShare     bool      `json:"canShare"`
}

// Snapshot converts the wire payload to the domain snapshot shape.
func (p VaultPayload) Snapshot() entities.Snapshot {
	return entities.Snapshot{
		ID:           p.ID,
		Version:      p.Version,
		Name:         p.Name,
		MemberCount:  p.MemberCount,
		Status:       p.Status,
		Tags:         p.Tags,
		LastActivity: p.LastActivity,
		CanExport:    p.CanExport,
		CanArchive:   p.CanArchive,
		CanShare:     p.CanShare,
	}
}

// EntityDeletedPayload removes a vault. Deletions are unversioned: the
// tombstone always wins.
type EntityDeletedPayload struct {
	EntityID string `json:"entityId" validate:"required"`
}

// StatusChangedPayload flips a vault's lifecycle status.
type StatusChangedPayload struct {
	EntityID string `json:"entityId" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=active pending inactive"`
	Version  int64  `json:"version" validate:"gt=0"`
}

// FieldDeltaPayload carries a partial update. Only the named fields merge
// into the replica.
type FieldDeltaPayload struct {
	EntityID string         `json:"entityId" validate:"required"`
	Version  int64          `json:"version" validate:"gt=0"`
	Fields   entities.Patch `json:"fields"`
}

// BulkActivityItem is one entry of a BULK_ACTIVITIES batch.
type BulkActivityItem struct {
	EntityID string         `json:"entityId" validate:"required"`
	Version  int64          `json:"version" validate:"gt=0"`
	Fields   entities.Patch `json:"fields"`
}

// BulkActivitiesPayload batches activity updates for many vaults into one
// message.
type BulkActivitiesPayload struct {
	Activities []BulkActivityItem `json:"activities" validate:"required,min=1,dive"`
}

// MissedUpdatesPayload answers a SYNC_REQUEST: the current state of every
// vault that changed past the client's watermarks, ids deleted meanwhile,
// and whether the gap was too large to replay.
type MissedUpdatesPayload struct {
	Updates          []VaultPayload `json:"updates" validate:"dive"`
	Deleted          []string       `json:"deleted"`
	SnapshotRequired bool           `json:"snapshotRequired"`
}

// TypingPayload marks an actor typing inside a vault.
type TypingPayload struct {
	EntityID string `json:"entityId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
}

// PresencePayload updates an actor's online state.
type PresencePayload struct {
	UserID     string    `json:"userId" validate:"required"`
	Online     bool      `json:"online"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// SessionExpiredPayload carries the optional server-side reason. The
// payload is informational; the message type alone is what matters, and it
// skips schema validation entirely.
type SessionExpiredPayload struct {
	Reason string `json:"reason"`
}

// SyncRequestPayload is the outbound recovery request: per-vault version
// watermarks keyed by vault id.
type SyncRequestPayload struct {
	Watermarks map[string]int64 `json:"watermarks"`
}

// UndoRequestPayload reverses a just-completed bulk operation while its
// undo window is open.
type UndoRequestPayload struct {
	OperationID string `json:"operationId" validate:"required"`
}
