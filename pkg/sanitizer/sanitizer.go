// Package sanitizer normalizes untrusted identity inputs before they
// reach storage or comparison logic.
package sanitizer

import (
	"regexp"
	"strings"
)

var (
	dotRegex   = regexp.MustCompile(`\.{2,}`)
	spaceRegex = regexp.MustCompile(`\s+`)
)

// NormalizeEmail lower-cases and trims an email address so lookups are
// case-insensitive. Consecutive dots in the local part are collapsed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	local := parts[0]
	domain := parts[1]

	local = dotRegex.ReplaceAllString(local, ".")
	local = strings.Trim(local, ".")

	return local + "@" + domain
}

// SplitDisplayName splits a provider-supplied display name into first and
// last name. The first whitespace token becomes the first name and the
// last token becomes the last name; middle tokens are discarded. Either
// result may be empty.
func SplitDisplayName(name string) (first, last string) {
	tokens := spaceRegex.Split(strings.TrimSpace(name), -1)
	if len(tokens) == 0 || tokens[0] == "" {
		return "", ""
	}
	first = tokens[0]
	if len(tokens) > 1 {
		last = tokens[len(tokens)-1]
	}
	return first, last
}

// TrimToLen trims surrounding whitespace and truncates s to at most max
// bytes. Used for free-form profile fields before persistence.
func TrimToLen(s string, max int) string {
	s = strings.TrimSpace(s)
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return s
}
