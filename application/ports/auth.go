package ports

import (
	"context"
)

// TokenSource supplies the auth token attached to dials and outbound
// envelopes. Token issuance and refresh live outside this module; the
// source only hands over whatever credential the host application holds.
type TokenSource interface {
	// Current returns the bearer token to attach.
	Current(ctx context.Context) (string, error)

	// Invalidate drops any cached token after the server expires the
	// session, so a stale credential is never reused on reconnect.
	Invalidate()
}

// TokenValidator checks the authToken field of inbound envelopes. Returns
// an UNAUTHORIZED error when the token is missing, unparseable or signed
// wrong.
type TokenValidator interface {
	Validate(token string) error
}
