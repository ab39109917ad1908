package identity

import (
	"context"
	"time"
)

// Store defines the persistence operations for identities. Lookups by
// email expect the caller to pass a normalized address.
type Store interface {
	// Create persists a new identity and assigns its ID. Grants
	// DefaultRole when the identity has no roles. Returns ErrEmailTaken
	// or ErrSubjectTaken on uniqueness violations.
	Create(ctx context.Context, ident *Identity) error

	// GetByID returns the identity with its role set loaded.
	GetByID(ctx context.Context, id int64) (*Identity, error)

	// GetByEmail looks up by normalized email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// GetBySubject looks up by external provider subject id.
	GetBySubject(ctx context.Context, subject string) (*Identity, error)

	// Update persists profile fields (names, picture, avatar, subject,
	// provider, enabled) as a single-row update.
	Update(ctx context.Context, ident *Identity) error

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error

	// SetEnabled flips the enabled flag.
	SetEnabled(ctx context.Context, id int64, enabled bool) error

	// TouchLastLogin records a successful login. Eventually consistent;
	// concurrent writers may overwrite each other.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error

	// AssignRole grants a role to the identity, creating the role record
	// if needed. Assigning an already-held role is a no-op.
	AssignRole(ctx context.Context, id int64, role string) error
}
