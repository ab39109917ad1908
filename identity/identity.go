// Package identity holds the persistent account model and the
// reconciliation logic that merges externally-asserted profiles into it.
// It is the system of record for roles: authorization decisions are
// always re-derived from here, never trusted from a provider.
package identity

import (
	"time"
)

// Credential providers an identity can authenticate through.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Well-known roles. DefaultRole is granted to every identity that would
// otherwise have none.
const (
	RoleAdmin   = "ADMIN"
	DefaultRole = "CLIENT"
)

// Identity is one account record. PasswordHash is nil for
// provider-only accounts; Subject is nil until an external provider is
// linked.
type Identity struct {
	ID           int64
	Email        string // normalized lower-case, unique
	FirstName    string
	LastName     string
	PasswordHash []byte
	Subject      *string // external provider subject id, unique when set
	Provider     string
	Enabled      bool
	PictureURL   string // provider-supplied
	AvatarURL    string // user-uploaded, takes precedence over PictureURL
	Roles        []string
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DisplayPicture resolves the picture precedence: uploaded avatar first,
// provider picture second.
func (i *Identity) DisplayPicture() string {
	if i.AvatarURL != "" {
		return i.AvatarURL
	}
	return i.PictureURL
}

// HasRole reports whether the identity carries the given role in any
// prefixed or unprefixed spelling.
func (i *Identity) HasRole(role string) bool {
	want := NormalizeRole(role)
	for _, r := range i.Roles {
		if NormalizeRole(r) == want {
			return true
		}
	}
	return false
}
