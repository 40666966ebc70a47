package filter

import (
	"errors"
	"fmt"
)

// InvalidFilterError is returned when a filter table cannot be compiled
// at all, e.g. because it names no relation.
type InvalidFilterError struct {
	Table  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	if e.Table == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter %q: %s", e.Table, e.Reason)
}

// InvalidRuleError is returned when a value carries a rule that maps to no
// operator, or whose content does not fit the operator.
type InvalidRuleError struct {
	Rule   string
	Value  string
	Column string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	msg := fmt.Sprintf("invalid rule %q for value %q", e.Rule, e.Value)
	if e.Column != "" {
		msg += fmt.Sprintf(" in column %q", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// IsInvalidFilter reports whether err is or wraps an InvalidFilterError.
func IsInvalidFilter(err error) bool {
	var target *InvalidFilterError
	return errors.As(err, &target)
}

// IsInvalidRule reports whether err is or wraps an InvalidRuleError.
func IsInvalidRule(err error) bool {
	var target *InvalidRuleError
	return errors.As(err, &target)
}
