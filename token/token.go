// Package token implements the single-use verification token state
// machine: typed, expiring, at most one live token per identity and
// type, consumed on first successful validation.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Type discriminates what a token proves control of.
type Type string

const (
	TypeEmailVerify   Type = "EMAIL_VERIFY"
	TypePasswordReset Type = "PASSWORD_RESET"
)

// Token is one pending verification or reset action.
type Token struct {
	Value      string // opaque unguessable string, primary lookup key
	Type       Type
	IdentityID int64
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token is past its expiry at the given
// instant. Expiry is always checked against validation time, never
// creation time.
func (t *Token) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// New creates a token with a cryptographically random value.
func New(identityID int64, typ Type, ttl time.Duration) (*Token, error) {
	value, err := randomValue()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Token{
		Value:      value,
		Type:       typ,
		IdentityID: identityID,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}, nil
}

func randomValue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
