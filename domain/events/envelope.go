package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// MessageType is the wire discriminator carried by every envelope.
type MessageType string

// Inbound message types.
const (
	MessageEntityCreated     MessageType = "ENTITY_CREATED"
	MessageEntityUpdated     MessageType = "ENTITY_UPDATED"
	MessageEntityDeleted     MessageType = "ENTITY_DELETED"
	MessageStatusChanged     MessageType = "STATUS_CHANGED"
	MessageFieldDelta        MessageType = "FIELD_DELTA"
	MessageBulkActivities    MessageType = "BULK_ACTIVITIES"
	MessageMissedUpdates     MessageType = "MISSED_UPDATES"
	MessageUserTyping        MessageType = "USER_TYPING"
	MessageUserTypingStopped MessageType = "USER_TYPING_STOPPED"
	MessagePresenceChanged   MessageType = "PRESENCE_CHANGED"
	MessageSessionExpired    MessageType = "SESSION_EXPIRED"
	MessageActionResponse    MessageType = "ACTION_RESPONSE"
)

// Outbound message types.
const (
	MessageSyncRequest   MessageType = "SYNC_REQUEST"
	MessageActionRequest MessageType = "ACTION_REQUEST"
	MessageUndoRequest   MessageType = "UNDO_REQUEST"
)

var knownTypes = map[MessageType]bool{
	MessageEntityCreated:     true,
	MessageEntityUpdated:     true,
	MessageEntityDeleted:     true,
	MessageStatusChanged:     true,
	MessageFieldDelta:        true,
	MessageBulkActivities:    true,
	MessageMissedUpdates:     true,
	MessageUserTyping:        true,
	MessageUserTypingStopped: true,
	MessagePresenceChanged:   true,
	MessageSessionExpired:    true,
	MessageActionResponse:    true,
	MessageSyncRequest:       true,
	MessageActionRequest:     true,
	MessageUndoRequest:       true,
}

// Known reports whether the type is part of the protocol.
func (t MessageType) Known() bool {
	return knownTypes[t]
}

// Envelope is the frame every realtime message travels in. Payload stays raw
// until the validator decodes it against the type's schema.
type Envelope struct {
	Type      MessageType     `json:"type"`
	MessageID string          `json:"messageId"`
	Payload   json.RawMessage `json:"payload"`
	AuthToken string          `json:"authToken"`
	Timestamp time.Time       `json:"timestamp"`
}

// ParseEnvelope decodes a wire frame. Failures here are malformed messages:
// the frame is not JSON, or the discriminator fields are unusable.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, pkgerrors.NewMalformed("envelope is not valid JSON")
	}
	if env.Type == "" {
		return nil, pkgerrors.NewMalformed("envelope missing type")
	}
	if !env.Type.Known() {
		return nil, pkgerrors.NewMalformed("unknown message type " + string(env.Type))
	}
	if env.MessageID == "" {
		return nil, pkgerrors.NewMalformed("envelope missing messageId")
	}
	return &env, nil
}

// NewEnvelope builds an outbound envelope with a fresh message id and the
// caller's auth token.
func NewEnvelope(msgType MessageType, payload any, authToken string, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.NewInternal("marshal payload", err)
	}
	return &Envelope{
		Type:      msgType,
		MessageID: uuid.New().String(),
		Payload:   raw,
		AuthToken: authToken,
		Timestamp: now,
	}, nil
}

// Encode serializes the envelope for the wire.
func (e *Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, pkgerrors.NewInternal("marshal envelope", err)
	}
	return data, nil
}
