package auth

import (
	"context"
	"sync"

	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
)

// StaticTokenSource holds the credential the host application handed us.
// After a SESSION_EXPIRED the source is invalidated; the host must call
// SetToken with a fresh credential before the next Connect.
type StaticTokenSource struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenSource creates a token source seeded with a token
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Current returns the held token, or an UNAUTHORIZED error when the session
// was invalidated and no fresh token has arrived.
func (s *StaticTokenSource) Current(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", pkgerrors.NewUnauthorized("no auth token available")
	}
	return s.token, nil
}

// SetToken installs a fresh credential.
func (s *StaticTokenSource) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Invalidate drops the held credential.
func (s *StaticTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}
