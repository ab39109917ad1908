package session

import (
	"context"
	"errors"
)

// ErrNotFound indicates no live session matched the token.
var ErrNotFound = errors.New("session.not_found")

// Store persists sessions keyed by token.
type Store interface {
	// Save inserts or overwrites the session under its token.
	Save(ctx context.Context, sess *Session) error

	// GetByToken returns the session with the given token, or
	// ErrNotFound. Implementations may treat expired sessions as absent.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// Delete removes the session with the given token. Deleting an
	// absent session is not an error.
	Delete(ctx context.Context, token string) error
}
