package actions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiborg-ai/appboardguru-sub011/domain/core/valueobjects"
)

func mustVaultID(t *testing.T, s string) valueobjects.VaultID {
	t.Helper()
	id, err := valueobjects.ParseVaultID(s)
	require.NoError(t, err)
	return id
}

func TestNewAction(t *testing.T) {
	// Arrange
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	targets := []valueobjects.VaultID{mustVaultID(t, "vault-1"), mustVaultID(t, "vault-2")}

	// Act
	action := NewAction(TypeArchive, targets, map[string]any{"notify": true}, now)

	// Assert
	assert.NotEmpty(t, action.ID)
	assert.Equal(t, TypeArchive, action.Type)
	assert.Equal(t, StatePending, action.State)
	assert.Equal(t, now, action.EnqueuedAt)
	assert.Zero(t, action.Attempts)
}

func TestNewAction_ULIDsSortByCreation(t *testing.T) {
	now := time.Now()

	first := NewAction(TypeRename, []valueobjects.VaultID{mustVaultID(t, "v1")}, nil, now)
	time.Sleep(2 * time.Millisecond)
	second := NewAction(TypeRename, []valueobjects.VaultID{mustVaultID(t, "v1")}, nil, now)

	assert.Less(t, first.ID, second.ID)
}

func TestAction_Request(t *testing.T) {
	action := NewAction(TypeShare, []valueobjects.VaultID{mustVaultID(t, "vault-9")}, nil, time.Now())

	req := action.Request()

	assert.Equal(t, action.ID, req.ActionID)
	assert.Equal(t, "share", req.ActionType)
	assert.Equal(t, []string{"vault-9"}, req.TargetIDs)
}

func TestActionType_Destructive(t *testing.T) {
	assert.True(t, TypeArchive.Destructive())
	assert.False(t, TypeShare.Destructive())
	assert.False(t, TypeExport.Destructive())
	assert.False(t, TypeRename.Destructive())
}

func TestActionType_CapabilityOperation(t *testing.T) {
	assert.Equal(t, valueobjects.OperationArchive, TypeArchive.CapabilityOperation())
	assert.Equal(t, valueobjects.OperationShare, TypeShare.CapabilityOperation())
	assert.Equal(t, valueobjects.OperationExport, TypeExport.CapabilityOperation())
	assert.Empty(t, TypeRename.CapabilityOperation())
}

func TestResult_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		rejected bool
	}{
		{
			name:     "all failed",
			result:   Result{ActionID: "a1", Failed: []Failure{{ID: "v1", Reason: "forbidden"}}},
			rejected: true,
		},
		{
			name:     "partial success",
			result:   Result{ActionID: "a1", Succeeded: []string{"v1"}, Failed: []Failure{{ID: "v2", Reason: "locked"}}},
			rejected: false,
		},
		{
			name:     "clean success",
			result:   Result{ActionID: "a1", Succeeded: []string{"v1"}},
			rejected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rejected, tt.result.Rejected())
		})
	}
}

func TestResult_RejectionReason(t *testing.T) {
	result := Result{Failed: []Failure{{ID: "v1", Reason: "archive disabled"}}}
	assert.Equal(t, "archive disabled", result.RejectionReason())

	assert.Empty(t, Result{}.RejectionReason())
}
