package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

func envelopeWithToken(t *testing.T, msgType events.MessageType, token string, payload any) []byte {
	t.Helper()
	env, err := events.NewEnvelope(msgType, payload, token, time.Now())
	require.NoError(t, err)
	raw, err := env.Encode()
	require.NoError(t, err)
	return raw
}

func TestValidate_MalformedFrames(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	cases := map[string][]byte{
		"not json":          []byte("{nope"),
		"missing type":      []byte(`{"messageId":"m-1","payload":{}}`),
		"unknown type":      []byte(`{"type":"MYSTERY","messageId":"m-1","payload":{}}`),
		"missing messageId": []byte(`{"type":"ENTITY_UPDATED","payload":{}}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(raw)
			assert.True(t, pkgerrors.IsMalformed(err), "got %v", err)
		})
	}
}

func TestValidate_OutboundTypeRejectedInbound(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := envelopeWithToken(t, events.MessageSyncRequest, testToken, events.SyncRequestPayload{})
	_, err := v.Validate(raw)
	assert.True(t, pkgerrors.IsMalformed(err))
}

func TestValidate_TokenCheckedBeforeSchema(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	// Payload is broken too, but the bad token must be reported first.
	raw := envelopeWithToken(t, events.MessageEntityUpdated, "forged", map[string]any{})
	_, err := v.Validate(raw)
	assert.True(t, pkgerrors.IsUnauthorized(err))
}

func TestValidate_SchemaViolations(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	cases := map[string]any{
		"missing required fields": map[string]any{"name": "no id or version"},
		"zero version":            map[string]any{"id": "vault-1", "version": 0, "status": "active"},
		"unknown status":          map[string]any{"id": "vault-1", "version": 1, "status": "limbo"},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			raw := envelopeWithToken(t, events.MessageEntityUpdated, testToken, payload)
			_, err := v.Validate(raw)
			assert.True(t, pkgerrors.IsSchemaViolation(err), "got %v", err)
		})
	}
}

func TestValidate_EmptyPayloadIsSchemaViolation(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := []byte(`{"type":"ENTITY_UPDATED","messageId":"m-1","authToken":"` + testToken + `"}`)
	_, err := v.Validate(raw)
	assert.True(t, pkgerrors.IsSchemaViolation(err))
}

func TestValidate_SessionExpiredBypassesTokenAndSchema(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	// No token, nonsense payload: the expiry announcement still passes.
	raw := []byte(`{"type":"SESSION_EXPIRED","messageId":"m-1","payload":{"unexpected":[1,2,3]}}`)
	msg, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, events.MessageSessionExpired, msg.Envelope.Type)
}

func TestValidate_SessionExpiredCarriesReasonWhenParseable(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := []byte(`{"type":"SESSION_EXPIRED","messageId":"m-1","payload":{"reason":"token revoked"}}`)
	msg, err := v.Validate(raw)
	require.NoError(t, err)
	payload, ok := msg.Payload.(events.SessionExpiredPayload)
	require.True(t, ok)
	assert.Equal(t, "token revoked", payload.Reason)
}

func TestValidate_DecodesEntityPayload(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := envelopeWithToken(t, events.MessageEntityCreated, testToken, events.VaultPayload{
		ID: "vault-1", Version: 3, Name: "Audit Pack", Status: "active", MemberCount: 4,
	})
	msg, err := v.Validate(raw)
	require.NoError(t, err)

	payload, ok := msg.Payload.(events.VaultPayload)
	require.True(t, ok)
	assert.Equal(t, "vault-1", payload.ID)
	assert.Equal(t, int64(3), payload.Version)
	assert.Equal(t, 4, payload.MemberCount)
}

func TestValidate_DecodesActionResult(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := envelopeWithToken(t, events.MessageActionResponse, testToken, actions.Result{
		ActionID:  "act-1",
		Succeeded: []string{"vault-1"},
		Failed:    []actions.Failure{{ID: "vault-2", Reason: "locked"}},
	})
	msg, err := v.Validate(raw)
	require.NoError(t, err)

	result, ok := msg.Payload.(actions.Result)
	require.True(t, ok)
	assert.Equal(t, "act-1", result.ActionID)
	assert.False(t, result.Rejected())
}

func TestValidate_BulkActivitiesRequireAtLeastOneEntry(t *testing.T) {
	v := NewValidator(fakeTokenValidator{})

	raw := envelopeWithToken(t, events.MessageBulkActivities, testToken, events.BulkActivitiesPayload{})
	_, err := v.Validate(raw)
	assert.True(t, pkgerrors.IsSchemaViolation(err))
}
