package token

import "errors"

var (
	// ErrNotFound indicates the token string matched no live token of the
	// expected type.
	ErrNotFound = errors.New("token.not_found")

	// ErrExpired indicates the token existed but was past its expiry. The
	// row is deleted as part of detection.
	ErrExpired = errors.New("token.expired")

	// ErrDuplicate indicates a concurrent insert won the
	// (identity, type) uniqueness race.
	ErrDuplicate = errors.New("token.duplicate")
)
