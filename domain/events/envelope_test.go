package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

func TestParseEnvelope_Valid(t *testing.T) {
	// Arrange
	raw := []byte(`{
		"type": "ENTITY_UPDATED",
		"messageId": "msg-1",
		"payload": {"id": "vault-1", "version": 2, "status": "active"},
		"authToken": "token",
		"timestamp": "2025-06-01T12:00:00Z"
	}`)

	// Act
	env, err := ParseEnvelope(raw)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, MessageEntityUpdated, env.Type)
	assert.Equal(t, "msg-1", env.MessageID)
	assert.Equal(t, "token", env.AuthToken)
	assert.JSONEq(t, `{"id": "vault-1", "version": 2, "status": "active"}`, string(env.Payload))
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing type", `{"messageId": "m1", "payload": {}}`},
		{"unknown type", `{"type": "ENTITY_EXPLODED", "messageId": "m1"}`},
		{"missing messageId", `{"type": "ENTITY_UPDATED", "payload": {}}`},
		{"non iso timestamp", `{"type": "ENTITY_UPDATED", "messageId": "m1", "timestamp": "yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEnvelope([]byte(tt.raw))

			assert.Nil(t, env)
			assert.True(t, pkgerrors.IsMalformed(err), "expected malformed, got %v", err)
		})
	}
}

func TestNewEnvelope_AssignsMessageID(t *testing.T) {
	// Act
	env, err := NewEnvelope(MessageSyncRequest, SyncRequestPayload{
		Watermarks: map[string]int64{"vault-1": 4},
	}, "token", time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, env.MessageID)
	assert.Equal(t, "token", env.AuthToken)

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, MessageSyncRequest, decoded.Type)
	assert.Equal(t, env.MessageID, decoded.MessageID)
}

func TestNewEnvelope_DistinctMessageIDs(t *testing.T) {
	now := time.Now()

	a, err := NewEnvelope(MessageActionRequest, struct{}{}, "t", now)
	require.NoError(t, err)
	b, err := NewEnvelope(MessageActionRequest, struct{}{}, "t", now)
	require.NoError(t, err)

	assert.NotEqual(t, a.MessageID, b.MessageID)
}
