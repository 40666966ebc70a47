package filter

import (
	"strings"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/queryir"
)

// Condition compiles the rows of a filter table into a predicate.
//
// authorities are the caller's effective privilege rows (see
// RowLevelSecurity); their security fragment is applied only when no row
// contributes a condition.
func Condition(t ir.Table, autoLike bool, authorities []ir.Row) (queryir.Predicate, error) {
	if strings.TrimSpace(t.Name) == "" {
		return nil, &InvalidFilterError{Reason: "table has no name"}
	}
	if err := t.Validate(); err != nil {
		return nil, &InvalidFilterError{Table: t.Name, Reason: err.Error()}
	}

	cond, err := compileRows(t, autoLike)
	if err != nil {
		return nil, err
	}

	if queryir.IsTrue(cond) {
		if fragment := RowLevelSecurity(authorities); fragment != "" {
			return queryir.Raw{SQL: fragment}, nil
		}
	}
	return cond, nil
}

// compileRows folds every row into the neutral accumulator.
func compileRows(t ir.Table, autoLike bool) (queryir.Predicate, error) {
	andCol := t.ColumnIndex(ir.AndFieldName)

	var acc queryir.Predicate = queryir.True{}
	for _, row := range t.Rows {
		rowCond, err := compileRow(t.Columns, row, andCol, autoLike)
		if err != nil {
			return nil, err
		}
		if andMarked(row, andCol) {
			acc = queryir.Conj(acc, rowCond)
		} else {
			acc = queryir.Disj(acc, rowCond)
		}
	}
	return acc, nil
}

// andMarked reports whether the row's "&" value is present and true.
func andMarked(row ir.Row, andCol int) bool {
	if andCol < 0 || andCol >= len(row.Values) || row.Values[andCol] == nil {
		return false
	}
	b, ok := row.Values[andCol].Bool()
	return ok && b
}

func compileRow(cols []ir.Column, row ir.Row, andCol int, autoLike bool) (queryir.Predicate, error) {
	var cond queryir.Predicate = queryir.True{}
	for i, v := range row.Values {
		if i == andCol || v == nil {
			continue
		}
		if !v.HasRule() && strings.TrimSpace(v.Text()) == "" {
			continue
		}
		p, err := compileValue(cols[i], v, autoLike)
		if err != nil {
			return nil, err
		}
		cond = queryir.Conj(cond, p)
	}
	return cond, nil
}

// compileValue turns one filter value into a single predicate.
func compileValue(col ir.Column, v *ir.Value, autoLike bool) (queryir.Predicate, error) {
	field := col.Name
	text := v.Text()

	op, ok := queryir.ClassifyRule(v.Rule())
	if !ok {
		return nil, &InvalidRuleError{Rule: v.Rule(), Value: text, Column: field}
	}

	switch op {
	case queryir.OpIsNotNull:
		return queryir.NullCheck{Field: field, Not: true}, nil
	case queryir.OpIsNull:
		return queryir.NullCheck{Field: field}, nil
	case 0:
		op = defaultOp(col, text, autoLike)
	}

	if v.IsNull() {
		return nil, &InvalidRuleError{Rule: v.Rule(), Value: text, Column: field, Reason: "operator needs a value"}
	}

	switch op {
	case queryir.OpLike, queryir.OpNotLike:
		if autoLike && col.Type == ir.TypeString && !strings.Contains(text, "%") {
			text += "%"
		}
		return queryir.Like{Field: field, Pattern: text, Not: op == queryir.OpNotLike}, nil

	case queryir.OpEq, queryir.OpNe:
		return queryir.Compare{
			Field:      field,
			Op:         op,
			Value:      v.Param(),
			IgnoreCase: v.Type() == ir.TypeString,
		}, nil

	case queryir.OpGt, queryir.OpGe, queryir.OpLt, queryir.OpLe:
		return queryir.Compare{Field: field, Op: op, Value: v.Param()}, nil

	case queryir.OpBetween:
		parts := SplitList(text)
		if len(parts) != 2 {
			return nil, &InvalidRuleError{Rule: v.Rule(), Value: text, Column: field, Reason: "between() needs exactly two bounds"}
		}
		return queryir.Between{
			Field: field,
			Low:   operand(col.Type, parts[0]),
			High:  operand(col.Type, parts[1]),
		}, nil

	case queryir.OpIn:
		parts := SplitList(text)
		values := make([]any, len(parts))
		for i, p := range parts {
			values[i] = operand(col.Type, p)
		}
		return queryir.In{Field: field, Values: values}, nil
	}

	return nil, &InvalidRuleError{Rule: v.Rule(), Value: text, Column: field}
}

// defaultOp picks the operator for a value without a rule. String columns
// use LIKE when autoLike is on or the value holds a wildcard.
func defaultOp(col ir.Column, text string, autoLike bool) queryir.Op {
	if col.Type == ir.TypeString && (autoLike || strings.ContainsAny(text, "%_")) {
		return queryir.OpLike
	}
	return queryir.OpEq
}

// SplitList splits a between() or in() operand on commas.
// Parts are kept verbatim, so joining them with "," restores the input.
func SplitList(text string) []string {
	return strings.Split(text, ",")
}

// operand converts one list part to the column type. Parts that do not
// parse are compared as text.
func operand(t ir.DataType, part string) any {
	if t == ir.TypeString {
		return part
	}
	v, err := ir.ParseValue(t, part)
	if err != nil {
		return part
	}
	return v.Param()
}
