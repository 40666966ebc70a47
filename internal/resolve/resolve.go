// Package resolve fills cross-item references in a batch item.
//
// A value whose rule is set refers to the output parameters of an earlier
// item: the rule names the item's ID and the content names the column,
// optionally prefixed by a row position ("1-KeyLong" is row 1, column
// KeyLong; "KeyLong" is row 0).
package resolve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/tablegate/internal/ir"
)

// UnknownReferenceError is returned when a rule names no prior item.
type UnknownReferenceError struct {
	Item      string
	Reference string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("item %q: no result with id %q", e.Item, e.Reference)
}

// MissingOutputError is returned when the referenced item produced no
// output parameters.
type MissingOutputError struct {
	Item      string
	Reference string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("item %q: result %q has no output parameters", e.Item, e.Reference)
}

// MissingValueError is returned when the referenced output parameters lack
// the column or the row.
type MissingValueError struct {
	Item      string
	Reference string
	Column    string
	Row       int
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("item %q: no value for column %q in row %d of result %q", e.Item, e.Column, e.Row, e.Reference)
}

// IsResolveError reports whether err is one of the resolve errors.
func IsResolveError(err error) bool {
	var (
		unknown *UnknownReferenceError
		output  *MissingOutputError
		value   *MissingValueError
	)
	return errors.As(err, &unknown) || errors.As(err, &output) || errors.As(err, &value)
}

// Target is a parsed reference content.
type Target struct {
	Row    int
	Column string
}

// ParseTarget splits "<digits>-<column>" into row and column. Content
// without an all-digit prefix before the first "-" is a column name at
// row 0, so column names may contain "-".
func ParseTarget(content string) Target {
	if i := strings.IndexByte(content, '-'); i > 0 {
		if row, err := strconv.Atoi(content[:i]); err == nil && isDigits(content[:i]) {
			return Target{Row: row, Column: content[i+1:]}
		}
	}
	return Target{Column: content}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Resolve returns a copy of item's table with every referencing value
// replaced by the referenced output value. The item and prior results are
// not modified. Replacement values carry no rule, so resolving the result
// again changes nothing.
func Resolve(item ir.TransactionItem, prior []ir.ItemResult) (ir.Table, error) {
	out := item.Table.Clone()
	for ri, row := range out.Rows {
		for vi, v := range row.Values {
			if v == nil || !v.HasRule() {
				continue
			}
			resolved, err := lookup(item.ID, v, prior)
			if err != nil {
				return ir.Table{}, err
			}
			out.Rows[ri].Values[vi] = resolved
		}
	}
	return out, nil
}

func lookup(itemID string, v *ir.Value, prior []ir.ItemResult) (*ir.Value, error) {
	ref := v.Rule()
	dep, ok := ir.FindResult(prior, ref)
	if !ok {
		return nil, &UnknownReferenceError{Item: itemID, Reference: ref}
	}
	if dep.Result == nil || dep.Result.OutputParameters == nil {
		return nil, &MissingOutputError{Item: itemID, Reference: ref}
	}

	target := ParseTarget(v.Text())
	found, ok := dep.Result.OutputParameters.Value(target.Row, target.Column)
	if !ok || found == nil {
		return nil, &MissingValueError{Item: itemID, Reference: ref, Column: target.Column, Row: target.Row}
	}
	return found.WithRule(""), nil
}
