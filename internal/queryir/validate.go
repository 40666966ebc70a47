package queryir

import (
	"fmt"
	"regexp"
)

// identPattern is the accepted shape of relation and field names.
// Identifiers come from client payloads and are rendered into SQL text,
// so anything outside this pattern is rejected rather than quoted.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name may be rendered as a SQL identifier.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks that a Select can be rendered safely.
//
// Rules:
//  1. From and every field are valid identifiers
//  2. Every predicate field is a valid identifier
//  3. Compare uses a comparison operator
//  4. In has at least one value
//  5. Limit is not negative
//
// Validate is a pure function with no side effects.
func Validate(q Select) error {
	if !ValidIdentifier(q.From) {
		return fmt.Errorf("invalid relation name %q", q.From)
	}
	for _, f := range q.Fields {
		if !ValidIdentifier(f) {
			return fmt.Errorf("invalid field name %q", f)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return ValidatePredicate(q.Filter)
}

// ValidatePredicate recursively validates a predicate tree.
func ValidatePredicate(p Predicate) error {
	switch pred := p.(type) {
	case nil, True, Raw:
		return nil
	case Compare:
		if !ValidIdentifier(pred.Field) {
			return fmt.Errorf("invalid field name %q", pred.Field)
		}
		switch pred.Op {
		case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		default:
			return fmt.Errorf("operator %s is not a comparison", pred.Op)
		}
	case NullCheck:
		return checkField(pred.Field)
	case Like:
		return checkField(pred.Field)
	case Between:
		return checkField(pred.Field)
	case In:
		if err := checkField(pred.Field); err != nil {
			return err
		}
		if len(pred.Values) == 0 {
			return fmt.Errorf("field %q: in() needs at least one value", pred.Field)
		}
	case And:
		for _, sub := range pred.Predicates {
			if err := ValidatePredicate(sub); err != nil {
				return err
			}
		}
	case Or:
		for _, sub := range pred.Predicates {
			if err := ValidatePredicate(sub); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown predicate type: %T", p)
	}
	return nil
}

func checkField(name string) error {
	if !ValidIdentifier(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}
