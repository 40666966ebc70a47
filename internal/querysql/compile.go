package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/tablegate/internal/queryir"
)

// SQLCompiler compiles queryir trees to parameterized SQL for SQLite.
//
// All values are parameterized, never interpolated. Identifiers are
// validated by queryir.Validate before they are written into the SQL text.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts a Select to parameterized SQL.
// Returns (sql, params, error) tuple.
func (c *SQLCompiler) Compile(q queryir.Select) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("compile select: %w", err)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.Count {
		b.WriteString("COUNT(*)")
	} else if len(q.Fields) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString(strings.Join(q.Fields, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(q.From)

	var params []any
	if !queryir.IsTrue(q.Filter) {
		where, whereParams, err := c.compilePredicate(q.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = whereParams
	}

	if !q.Count && q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}

	return b.String(), params, nil
}

// CompilePredicate renders a bare condition.
// The neutral condition renders as "1 = 1".
func (c *SQLCompiler) CompilePredicate(p queryir.Predicate) (string, []any, error) {
	if err := queryir.ValidatePredicate(p); err != nil {
		return "", nil, err
	}
	return c.compilePredicate(p)
}

// compilePredicate compiles a queryir.Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil, queryir.True:
		return "1 = 1", nil, nil
	case queryir.Compare:
		return c.compileCompare(pred)
	case queryir.NullCheck:
		if pred.Not {
			return pred.Field + " IS NOT NULL", nil, nil
		}
		return pred.Field + " IS NULL", nil, nil
	case queryir.Like:
		op := "LIKE"
		if pred.Not {
			op = "NOT LIKE"
		}
		return fmt.Sprintf("LOWER(%s) %s LOWER(?)", pred.Field, op), []any{pred.Pattern}, nil
	case queryir.Between:
		return pred.Field + " BETWEEN ? AND ?", []any{pred.Low, pred.High}, nil
	case queryir.In:
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(pred.Values)), ", ")
		params := make([]any, len(pred.Values))
		copy(params, pred.Values)
		return fmt.Sprintf("%s IN (%s)", pred.Field, marks), params, nil
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ")
	case queryir.Raw:
		return pred.SQL, nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileCompare compiles "field <op> ?", lowering both sides when
// IgnoreCase is set.
func (c *SQLCompiler) compileCompare(cmp queryir.Compare) (string, []any, error) {
	if cmp.IgnoreCase {
		return fmt.Sprintf("LOWER(%s) %s LOWER(?)", cmp.Field, cmp.Op), []any{cmp.Value}, nil
	}
	return fmt.Sprintf("%s %s ?", cmp.Field, cmp.Op), []any{cmp.Value}, nil
}

// compileJunction joins sub-predicates with sep. Nested junctions are
// parenthesized so precedence follows the tree, not SQL operator rules.
func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep string) (string, []any, error) {
	if len(preds) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(preds))
	var allParams []any
	for _, pred := range preds {
		sql, params, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		switch pred.(type) {
		case queryir.And, queryir.Or, queryir.Raw:
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}

	return strings.Join(parts, sep), allParams, nil
}
