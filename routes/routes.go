// Package routes declares who may call what. Permissions live in one
// ordered table instead of being scattered across handlers; the first
// rule matching a request decides, and anything unmatched requires a
// login.
package routes

import "strings"

// Access is the requirement a rule imposes.
type Access struct {
	kind accessKind
	role string
}

type accessKind int

const (
	accessPublic accessKind = iota
	accessAuthenticated
	accessRole
)

// Public lets anyone through, session or not.
func Public() Access { return Access{kind: accessPublic} }

// Authenticated requires a logged-in session.
func Authenticated() Access { return Access{kind: accessAuthenticated} }

// Role requires a logged-in session holding the given role.
func Role(name string) Access {
	return Access{kind: accessRole, role: name}
}

// Rule binds one method/path shape to an access requirement. Method "*"
// matches any method. A pattern ending in "/*" matches the path prefix
// before it; any other pattern matches exactly.
type Rule struct {
	Method  string
	Pattern string
	Access  Access
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "*" && r.Method != method {
		return false
	}
	if prefix, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Pattern
}

// Table is an ordered permission table. Order is load-bearing: put
// specific rules before broad ones.
type Table []Rule

// Match returns the access requirement for a request. Unmatched
// requests fall back to requiring authentication.
func (t Table) Match(method, path string) Access {
	for _, rule := range t {
		if rule.matches(method, path) {
			return rule.Access
		}
	}
	return Authenticated()
}

// Allow is a convenience for building rules inline.
func Allow(method, pattern string, access Access) Rule {
	return Rule{Method: method, Pattern: pattern, Access: access}
}

// AllowAll matches the pattern under any method.
func AllowAll(pattern string, access Access) Rule {
	return Rule{Method: "*", Pattern: pattern, Access: access}
}
