package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

func newTestVault(t *testing.T, version int64) *Vault {
	t.Helper()

	id, err := valueobjects.ParseVaultID("vault-1")
	require.NoError(t, err)

	vault, err := NewVault(
		id,
		valueobjects.Version(version),
		"Q3 Board Pack",
		4,
		valueobjects.StatusActive,
		[]string{"finance"},
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		valueobjects.Capabilities{CanExport: true, CanArchive: true, CanShare: false},
	)
	require.NoError(t, err)
	return vault
}

func TestNewVault_Validation(t *testing.T) {
	id, _ := valueobjects.ParseVaultID("vault-1")

	t.Run("rejects zero id", func(t *testing.T) {
		_, err := NewVault(valueobjects.VaultID{}, 1, "x", 0, valueobjects.StatusActive, nil, time.Time{}, valueobjects.Capabilities{})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := NewVault(id, 1, "x", 0, valueobjects.VaultStatus("zombie"), nil, time.Time{}, valueobjects.Capabilities{})
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("rejects negative member count", func(t *testing.T) {
		_, err := NewVault(id, 1, "x", -1, valueobjects.StatusActive, nil, time.Time{}, valueobjects.Capabilities{})
		assert.True(t, pkgerrors.IsValidation(err))
	})
}

func TestVault_ApplyPatch_MergesOnlyNamedFields(t *testing.T) {
	// Arrange
	vault := newTestVault(t, 3)
	newName := "Q3 Board Pack (final)"
	patch := Patch{Name: &newName}

	// Act
	err := vault.ApplyPatch(patch, 4)

	// Assert: name changed, everything else untouched
	require.NoError(t, err)
	assert.Equal(t, "Q3 Board Pack (final)", vault.Name())
	assert.Equal(t, 4, vault.MemberCount())
	assert.Equal(t, valueobjects.StatusActive, vault.Status())
	assert.Equal(t, []string{"finance"}, vault.Tags())
	assert.Equal(t, valueobjects.Version(4), vault.Version())
}

func TestVault_ApplyPatch_RefusesVersionRollback(t *testing.T) {
	vault := newTestVault(t, 5)
	name := "old name"

	err := vault.ApplyPatch(Patch{Name: &name}, 3)

	assert.True(t, pkgerrors.IsStaleUpdate(err))
	assert.Equal(t, "Q3 Board Pack", vault.Name())
	assert.Equal(t, valueobjects.Version(5), vault.Version())
}

func TestVault_ApplyPatch_ValidatesFields(t *testing.T) {
	vault := newTestVault(t, 1)

	bad := -2
	err := vault.ApplyPatch(Patch{MemberCount: &bad}, 2)
	assert.True(t, pkgerrors.IsValidation(err))

	status := "zombie"
	err = vault.ApplyPatch(Patch{Status: &status}, 2)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestVault_ApplyStatus(t *testing.T) {
	vault := newTestVault(t, 2)

	require.NoError(t, vault.ApplyStatus(valueobjects.StatusInactive, 3))

	assert.Equal(t, valueobjects.StatusInactive, vault.Status())
	assert.Equal(t, valueobjects.Version(3), vault.Version())
}

func TestVault_SnapshotRoundTrip(t *testing.T) {
	// Arrange
	vault := newTestVault(t, 7)

	// Act
	snap := vault.Snapshot()
	rebuilt, err := VaultFromSnapshot(snap)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, vault.ID().String(), rebuilt.ID().String())
	assert.Equal(t, vault.Version(), rebuilt.Version())
	assert.Equal(t, vault.Name(), rebuilt.Name())
	assert.Equal(t, vault.Capabilities(), rebuilt.Capabilities())
}

func TestVault_TagsAreCopied(t *testing.T) {
	vault := newTestVault(t, 1)

	tags := vault.Tags()
	tags[0] = "mutated"

	assert.Equal(t, []string{"finance"}, vault.Tags())
}

func TestPatch_IsEmpty(t *testing.T) {
	assert.True(t, Patch{}.IsEmpty())

	name := "x"
	assert.False(t, Patch{Name: &name}.IsEmpty())
}
