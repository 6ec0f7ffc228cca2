package session

import (
	"sync"
	"time"

	"fmsync/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the current access token and answers the single question
// the sync engine cares about: is a session currently authenticated. The
// token is issued and refreshed elsewhere; the client only reads its own
// expiry claim, so the signature is not verified here.
type Session struct {
	mu    sync.RWMutex
	token string
	exp   time.Time
}

// New creates a session from an initial token, which may be empty.
func New(token string) *Session {
	s := &Session{}
	s.SetToken(token)
	return s
}

// SetToken replaces the current access token.
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.exp = time.Time{}

	if token == "" {
		return
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		logger.Warn("Failed to parse access token", logger.ErrorField(err))
		s.token = ""
		return
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// Token without an expiry claim is treated as non-expiring.
		return
	}
	s.exp = exp.Time
}

// Token returns the current access token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a usable session exists: a token is
// present and not past its expiry claim.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return false
	}
	if s.exp.IsZero() {
		return true
	}
	return time.Now().Before(s.exp)
}
