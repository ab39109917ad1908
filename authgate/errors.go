package authgate

import "errors"

var (
	// ErrEmailAlreadyRegistered indicates a registration attempt for an
	// email that already has an account.
	ErrEmailAlreadyRegistered = errors.New("authgate.email_already_registered")

	// ErrInvalidCredentials indicates the email or password did not
	// match. Unknown email and wrong password are indistinguishable.
	ErrInvalidCredentials = errors.New("authgate.invalid_credentials")

	// ErrAccountDisabled indicates the credentials matched but the
	// account has not been verified or was disabled.
	ErrAccountDisabled = errors.New("authgate.account_disabled")

	// ErrInvalidToken indicates a missing, expired, consumed, or
	// wrong-type token.
	ErrInvalidToken = errors.New("authgate.invalid_token")
)
