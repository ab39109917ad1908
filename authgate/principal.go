package authgate

import "github.com/nousware/authkit/identity"

// Principal is the unified view of an authenticated user, local or
// provider-backed. Roles are normalized and merged from the store and,
// for provider logins, the provider's claims. The JSON shape is what
// GET /me serves: Avatar is the user-uploaded URL, Picture the
// provider-supplied one, and DisplayPicture resolves the precedence
// between them.
type Principal struct {
	Authenticated  bool     `json:"authenticated"`
	IdentityID     int64    `json:"id"`
	Email          string   `json:"email"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName,omitempty"`
	Provider       string   `json:"provider"`
	Role           string   `json:"role"`
	Roles          []string `json:"roles"`
	Avatar         string   `json:"avatar,omitempty"`
	Picture        string   `json:"picture,omitempty"`
	DisplayPicture string   `json:"displayPicture,omitempty"`
}

// TopRole is the single most significant role: ADMIN when held,
// otherwise the first role alphabetically, falling back to the default
// role for an empty set.
func (p Principal) TopRole() string {
	return identity.TopRole(p.Roles)
}

// HasRole reports whether the principal holds the given role,
// normalized before comparison.
func (p Principal) HasRole(role string) bool {
	want := identity.NormalizeRole(role)
	for _, r := range p.Roles {
		if r == want {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.HasRole(identity.RoleAdmin)
}

// Authorities returns the principal's roles in both prefixed and bare
// forms, for clients that expect Spring-style authority names.
func (p Principal) Authorities() []string {
	return identity.ExpandAuthorities(p.Roles)
}

// principalFor projects a stored identity into a Principal, merging any
// provider-supplied role claims. Store roles are authoritative for
// ADMIN: a provider claim never grants it.
func principalFor(ident *identity.Identity, claimed []string) Principal {
	merged := make([]string, 0, len(ident.Roles)+len(claimed))
	merged = append(merged, ident.Roles...)

	storeAdmin := ident.HasRole(identity.RoleAdmin)
	for _, c := range claimed {
		if identity.NormalizeRole(c) == identity.RoleAdmin && !storeAdmin {
			continue
		}
		merged = append(merged, c)
	}

	roles := identity.NormalizeRoles(merged)
	return Principal{
		Authenticated:  true,
		IdentityID:     ident.ID,
		Email:          ident.Email,
		FirstName:      ident.FirstName,
		LastName:       ident.LastName,
		Provider:       ident.Provider,
		Role:           identity.TopRole(roles),
		Roles:          roles,
		Avatar:         ident.AvatarURL,
		Picture:        ident.PictureURL,
		DisplayPicture: ident.DisplayPicture(),
	}
}
