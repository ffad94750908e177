package entities

import (
	"time"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// Vault is the synced entity: a shared board-pack workspace. The server owns
// the canonical copy; this model is the client-side replica the reconciler
// keeps converged. Fields are private so every mutation goes through the
// version-gated apply methods.
type Vault struct {
	id           valueobjects.VaultID
	version      valueobjects.Version
	name         string
	memberCount  int
	status       valueobjects.VaultStatus
	tags         []string
	lastActivity time.Time
	capabilities valueobjects.Capabilities
}

// Patch is a partial update where only non-nil fields are applied. FIELD_DELTA
// and bulk activity items decode into this shape; merging never clears fields
// the payload did not name.
type Patch struct {
	Name         *string    `json:"name,omitempty"`
	MemberCount  *int       `json:"memberCount,omitempty" validate:"omitempty,gte=0"`
	Status       *string    `json:"status,omitempty" validate:"omitempty,oneof=active pending inactive"`
	Tags         *[]string  `json:"tags,omitempty"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	CanExport    *bool      `json:"canExport,omitempty"`
	CanArchive   *bool      `json:"canArchive,omitempty"`
	CanShare     *bool      `json:"canShare,omitempty"`
}

// IsEmpty reports whether the patch names no fields at all.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.MemberCount == nil && p.Status == nil &&
		p.Tags == nil && p.LastActivity == nil &&
		p.CanExport == nil && p.CanArchive == nil && p.CanShare == nil
}

// Snapshot is the flat serializable view of a vault, used in diffs, full
// state refreshes and the ops surface.
type Snapshot struct {
	ID           string    `json:"id"`
	Version      int64     `json:"version"`
	Name         string    `json:"name"`
	MemberCount  int       `json:"memberCount"`
	Status       string    `json:"status"`
	Tags         []string  `json:"tags"`
	LastActivity time.Time `json:"lastActivity"`
	CanExport    bool      `json:"canExport"`
	CanArchive   bool      `json:"canArchive"`
	CanShare     bool      `json:"canShare"`
}

// NewVault creates a vault replica from server-provided fields
func NewVault(
	id valueobjects.VaultID,
	version valueobjects.Version,
	name string,
	memberCount int,
	status valueobjects.VaultStatus,
	tags []string,
	lastActivity time.Time,
	capabilities valueobjects.Capabilities,
) (*Vault, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidation("vault id cannot be empty")
	}
	if !status.IsValid() {
		return nil, pkgerrors.NewValidation("unknown vault status " + string(status))
	}
	if memberCount < 0 {
		return nil, pkgerrors.NewValidation("member count cannot be negative")
	}

	return &Vault{
		id:           id,
		version:      version,
		name:         name,
		memberCount:  memberCount,
		status:       status,
		tags:         append([]string(nil), tags...),
		lastActivity: lastActivity,
		capabilities: capabilities,
	}, nil
}

// VaultFromSnapshot rebuilds a vault replica from a snapshot row
func VaultFromSnapshot(snap Snapshot) (*Vault, error) {
	id, err := valueobjects.ParseVaultID(snap.ID)
	if err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}
	status, err := valueobjects.ParseVaultStatus(snap.Status)
	if err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}
	return NewVault(
		id,
		valueobjects.Version(snap.Version),
		snap.Name,
		snap.MemberCount,
		status,
		snap.Tags,
		snap.LastActivity,
		valueobjects.Capabilities{
			CanExport:  snap.CanExport,
			CanArchive: snap.CanArchive,
			CanShare:   snap.CanShare,
		},
	)
}

// ID returns the vault identifier
func (v *Vault) ID() valueobjects.VaultID {
	return v.id
}

// Version returns the replica's current version
func (v *Vault) Version() valueobjects.Version {
	return v.version
}

// Name returns the vault display name
func (v *Vault) Name() string {
	return v.name
}

// MemberCount returns the number of members with access
func (v *Vault) MemberCount() int {
	return v.memberCount
}

// Status returns the vault lifecycle status
func (v *Vault) Status() valueobjects.VaultStatus {
	return v.status
}

// Tags returns a copy of the vault tags
func (v *Vault) Tags() []string {
	return append([]string(nil), v.tags...)
}

// LastActivity returns the most recent activity timestamp
func (v *Vault) LastActivity() time.Time {
	return v.lastActivity
}

// Capabilities returns the member's permission flags for this vault
func (v *Vault) Capabilities() valueobjects.Capabilities {
	return v.capabilities
}

// ApplyPatch merges the named fields and advances the version. The caller is
// responsible for the version gate; ApplyPatch itself only refuses to move
// the version backwards.
func (v *Vault) ApplyPatch(patch Patch, version valueobjects.Version) error {
	if version < v.version {
		return pkgerrors.NewStaleUpdate("patch version behind replica")
	}

	if patch.Name != nil {
		v.name = *patch.Name
	}
	if patch.MemberCount != nil {
		if *patch.MemberCount < 0 {
			return pkgerrors.NewValidation("member count cannot be negative")
		}
		v.memberCount = *patch.MemberCount
	}
	if patch.Status != nil {
		status, err := valueobjects.ParseVaultStatus(*patch.Status)
		if err != nil {
			return pkgerrors.NewValidation(err.Error())
		}
		v.status = status
	}
	if patch.Tags != nil {
		v.tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.LastActivity != nil {
		v.lastActivity = *patch.LastActivity
	}
	if patch.CanExport != nil {
		v.capabilities.CanExport = *patch.CanExport
	}
	if patch.CanArchive != nil {
		v.capabilities.CanArchive = *patch.CanArchive
	}
	if patch.CanShare != nil {
		v.capabilities.CanShare = *patch.CanShare
	}

	v.version = version
	return nil
}

// ApplyStatus sets the lifecycle status and advances the version
func (v *Vault) ApplyStatus(status valueobjects.VaultStatus, version valueobjects.Version) error {
	if !status.IsValid() {
		return pkgerrors.NewValidation("unknown vault status " + string(status))
	}
	if version < v.version {
		return pkgerrors.NewStaleUpdate("status version behind replica")
	}
	v.status = status
	v.version = version
	return nil
}

// Clone returns an independent copy of the replica.
func (v *Vault) Clone() *Vault {
	clone := *v
	clone.tags = append([]string(nil), v.tags...)
	return &clone
}

// Snapshot returns the serializable view of the vault
func (v *Vault) Snapshot() Snapshot {
	return Snapshot{
		ID:           v.id.String(),
		Version:      v.version.Int64(),
		Name:         v.name,
		MemberCount:  v.memberCount,
		Status:       v.status.String(),
		Tags:         v.Tags(),
		LastActivity: v.lastActivity,
		CanExport:    v.capabilities.CanExport,
		CanArchive:   v.capabilities.CanArchive,
		CanShare:     v.capabilities.CanShare,
	}
}
