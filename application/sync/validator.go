// Package sync implements the realtime pipeline: envelope validation,
// duplicate suppression, state reconciliation, missed-update recovery and
// the engine loop that drives them.
package sync

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	"github.com/aiborg-ai/appboardguru-sub011/domain/actions"
	"github.com/aiborg-ai/appboardguru-sub011/domain/events"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// Message is a validated inbound frame: the envelope plus its payload
// decoded into the type's schema.
type Message struct {
	Envelope *events.Envelope
	Payload  any
}

// Validator rejects inbound frames in a fixed order: malformed envelope
// first, then authorization, then payload schema. The first failure wins,
// so a frame with a bad token and a bad payload is always reported as
// unauthorized.
type Validator struct {
	tokens   ports.TokenValidator
	validate *validator.Validate
}

// NewValidator creates an envelope validator.
func NewValidator(tokens ports.TokenValidator) *Validator {
	return &Validator{
		tokens:   tokens,
		validate: validator.New(),
	}
}

var inboundTypes = map[events.MessageType]bool{
	events.MessageEntityCreated:     true,
	events.MessageEntityUpdated:     true,
	events.MessageEntityDeleted:     true,
	events.MessageStatusChanged:     true,
	events.MessageFieldDelta:        true,
	events.MessageBulkActivities:    true,
	events.MessageMissedUpdates:     true,
	events.MessageUserTyping:        true,
	events.MessageUserTypingStopped: true,
	events.MessagePresenceChanged:   true,
	events.MessageSessionExpired:    true,
	events.MessageActionResponse:    true,
}

// Validate checks one raw frame and returns the decoded message.
//
// SESSION_EXPIRED frames skip the token and schema checks entirely: the
// session announcement must get through even though its token is, almost
// by definition, no longer valid.
func (v *Validator) Validate(data []byte) (*Message, error) {
	env, err := events.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}

	if env.Type == events.MessageSessionExpired {
		var payload events.SessionExpiredPayload
		if len(env.Payload) > 0 {
			// Best effort; the type alone carries the meaning.
			_ = json.Unmarshal(env.Payload, &payload)
		}
		return &Message{Envelope: env, Payload: payload}, nil
	}

	if !inboundTypes[env.Type] {
		return nil, pkgerrors.NewMalformed("message type " + string(env.Type) + " is not valid inbound")
	}

	if err := v.tokens.Validate(env.AuthToken); err != nil {
		return nil, err
	}

	payload, err := v.decodePayload(env)
	if err != nil {
		return nil, err
	}

	return &Message{Envelope: env, Payload: payload}, nil
}

// decodePayload unmarshals and schema-checks the payload for the
// envelope's type.
func (v *Validator) decodePayload(env *events.Envelope) (any, error) {
	switch env.Type {
	case events.MessageEntityCreated, events.MessageEntityUpdated:
		return decodeAs[events.VaultPayload](v, env)
	case events.MessageEntityDeleted:
		return decodeAs[events.EntityDeletedPayload](v, env)
	case events.MessageStatusChanged:
		return decodeAs[events.StatusChangedPayload](v, env)
	case events.MessageFieldDelta:
		return decodeAs[events.FieldDeltaPayload](v, env)
	case events.MessageBulkActivities:
		return decodeAs[events.BulkActivitiesPayload](v, env)
	case events.MessageMissedUpdates:
		return decodeAs[events.MissedUpdatesPayload](v, env)
	case events.MessageUserTyping, events.MessageUserTypingStopped:
		return decodeAs[events.TypingPayload](v, env)
	case events.MessagePresenceChanged:
		return decodeAs[events.PresencePayload](v, env)
	case events.MessageActionResponse:
		return decodeAs[actions.Result](v, env)
	}
	return nil, pkgerrors.NewSchemaViolation("no schema for type "+string(env.Type), nil)
}

// decodeAs unmarshals the payload into T and runs its validation tags.
func decodeAs[T any](v *Validator, env *events.Envelope) (T, error) {
	var payload T
	if len(env.Payload) == 0 {
		return payload, pkgerrors.NewSchemaViolation(string(env.Type)+" payload is required", nil)
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return payload, pkgerrors.NewSchemaViolation(string(env.Type)+" payload does not match schema", err)
	}
	if err := v.validate.Struct(payload); err != nil {
		return payload, pkgerrors.NewSchemaViolation(string(env.Type)+" payload failed validation", err)
	}
	return payload, nil
}
