package identity

import "errors"

var (
	// ErrNotFound indicates no identity matched the lookup.
	ErrNotFound = errors.New("identity.not_found")

	// ErrEmailTaken indicates the normalized email is already registered.
	ErrEmailTaken = errors.New("identity.email_taken")

	// ErrSubjectTaken indicates the external subject id is already linked
	// to a different identity.
	ErrSubjectTaken = errors.New("identity.subject_taken")

	// ErrIncompleteProfile indicates a provider profile is missing the
	// fields required for reconciliation.
	ErrIncompleteProfile = errors.New("identity.incomplete_profile")
)
