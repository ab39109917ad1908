// Package session implements cookie-backed server-side sessions. A
// session exists before login; authentication upgrades it in place and
// rotates its token so a pre-login cookie can never be replayed into an
// authenticated one.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session is one browser's server-side state. Token is the only value
// that leaves the server, inside a signed cookie; ID is stable across
// token rotations and used for logging.
type Session struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"token"`
	IdentityID int64     `json:"identity_id"`
	CSRFToken  string    `json:"csrf_token"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsAuthenticated reports whether a login has been bound to the session.
func (s *Session) IsAuthenticated() bool {
	return s.IdentityID != 0
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// New creates an anonymous session with fresh token and CSRF secrets.
func New(ttl time.Duration) (*Session, error) {
	tok, err := randomToken()
	if err != nil {
		return nil, err
	}
	csrf, err := randomToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Session{
		ID:        uuid.New(),
		Token:     tok,
		CSRFToken: csrf,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
