// Package validator applies field-level validation rules to request
// input and reports failures as a machine-readable ValidationError.
package validator

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
)

// ValidationError maps field names to human-readable problems.
type ValidationError map[string][]string

func (e ValidationError) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// Details exposes the field problems for structured error responses.
func (e ValidationError) Details() map[string][]string {
	return e
}

// Rule validates one field. A rule reports its field name and a problem
// description when the value is invalid.
type Rule func() (field, problem string, ok bool)

// Apply runs all rules and collects failures into a ValidationError.
// Returns nil when every rule passes.
func Apply(rules ...Rule) error {
	errs := make(ValidationError)
	for _, rule := range rules {
		if field, problem, ok := rule(); !ok {
			errs[field] = append(errs[field], problem)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Required fails when value is blank.
func Required(field, value string) Rule {
	return func() (string, string, bool) {
		return field, "is required", strings.TrimSpace(value) != ""
	}
}

// ValidEmail fails when value is not a parseable email address.
func ValidEmail(field, value string) Rule {
	return func() (string, string, bool) {
		if value == "" {
			return field, "is required", false
		}
		addr, err := mail.ParseAddress(value)
		return field, "must be a valid email address", err == nil && addr.Address == value
	}
}

// MinLen fails when value is shorter than n bytes.
func MinLen(field, value string, n int) Rule {
	return func() (string, string, bool) {
		return field, fmt.Sprintf("must be at least %d characters", n), len(value) >= n
	}
}

// MaxLen fails when value is longer than n bytes.
func MaxLen(field, value string, n int) Rule {
	return func() (string, string, bool) {
		return field, fmt.Sprintf("must be at most %d characters", n), len(value) <= n
	}
}

// Password enforces the password policy used by registration and reset.
func Password(field, value string) Rule {
	return func() (string, string, bool) {
		if len(value) < 8 {
			return field, "must be at least 8 characters", false
		}
		if len(value) > 128 {
			return field, "must be at most 128 characters", false
		}
		return field, "", true
	}
}
