package identity

import (
	"slices"
	"strings"
)

const rolePrefix = "ROLE_"

// NormalizeRole canonicalizes a role name: trimmed, upper-cased, with
// any "ROLE_" prefix stripped. Returns "" for blank input.
func NormalizeRole(role string) string {
	s := strings.ToUpper(strings.TrimSpace(role))
	s = strings.TrimPrefix(s, rolePrefix)
	return s
}

// NormalizeRoles canonicalizes, dedupes, and sorts a role set with
// ADMIN first and the rest alphabetical. Blank entries are dropped.
func NormalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		n := NormalizeRole(r)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b string) int {
		if a == RoleAdmin {
			return -1
		}
		if b == RoleAdmin {
			return 1
		}
		return strings.Compare(a, b)
	})
	return out
}

// ExpandAuthorities returns both the prefixed and unprefixed spelling of
// every role, for compatibility with authorization checks written
// against either form.
func ExpandAuthorities(roles []string) []string {
	normalized := NormalizeRoles(roles)
	out := make([]string, 0, len(normalized)*2)
	for _, r := range normalized {
		out = append(out, r, rolePrefix+r)
	}
	return out
}

// TopRole picks the single role representing a privilege level: ADMIN if
// present, else the first role alphabetically, else the default role.
func TopRole(roles []string) string {
	normalized := NormalizeRoles(roles)
	if len(normalized) == 0 {
		return DefaultRole
	}
	if slices.Contains(normalized, RoleAdmin) {
		return RoleAdmin
	}
	return normalized[0]
}
