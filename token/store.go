package token

import "context"

// Store persists tokens. Implementations must enforce uniqueness on the
// token value and on (identity, type).
type Store interface {
	// Replace atomically deletes any live token of the same
	// (identity, type) pair and inserts tok. Returns ErrDuplicate when a
	// concurrent Replace wins the insert race.
	Replace(ctx context.Context, tok *Token) error

	// Find returns the token with the given value.
	Find(ctx context.Context, value string) (*Token, error)

	// Delete removes a token by value. Deleting an absent token is not
	// an error.
	Delete(ctx context.Context, value string) error

	// DeleteByIdentityAndType removes any token of the given pair.
	DeleteByIdentityAndType(ctx context.Context, identityID int64, typ Type) error
}
