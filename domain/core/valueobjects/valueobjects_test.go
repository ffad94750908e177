package valueobjects

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVaultID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "server issued id",
			input:   "vault-8f2a",
			wantErr: false,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseVaultID(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, id.IsZero())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.input, id.String())
				assert.False(t, id.IsZero())
			}
		})
	}
}

func TestVaultID_JSONRoundTrip(t *testing.T) {
	id, err := ParseVaultID("vault-1")
	require.NoError(t, err)

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"vault-1"`, string(data))

	var decoded VaultID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, id.Equals(decoded))
}

func TestVaultID_UnmarshalRejectsNonString(t *testing.T) {
	var id VaultID
	err := json.Unmarshal([]byte(`42`), &id)

	assert.Error(t, err)
}

func TestVersion_NewerThan(t *testing.T) {
	tests := []struct {
		name     string
		incoming Version
		current  Version
		newer    bool
	}{
		{"strictly newer", 5, 3, true},
		{"equal is not newer", 5, 5, false},
		{"older", 3, 5, false},
		{"anything beats unknown", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.newer, tt.incoming.NewerThan(tt.current))
		})
	}
}

func TestParseVaultStatus(t *testing.T) {
	for _, valid := range []string{"active", "pending", "inactive"} {
		status, err := ParseVaultStatus(valid)
		require.NoError(t, err)
		assert.True(t, status.IsValid())
	}

	_, err := ParseVaultStatus("archived")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown vault status")
}

func TestCapabilities_Allows(t *testing.T) {
	caps := Capabilities{CanExport: true, CanArchive: false, CanShare: true}

	assert.True(t, caps.Allows(OperationExport))
	assert.False(t, caps.Allows(OperationArchive))
	assert.True(t, caps.Allows(OperationShare))

	// Ungated operations pass through
	assert.True(t, caps.Allows("rename"))
}
