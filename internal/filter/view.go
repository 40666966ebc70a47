package filter

import (
	"fmt"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/queryir"
	"github.com/roach88/tablegate/internal/querysql"
)

// ViewRequest is a standalone filter request.
type ViewRequest struct {
	Table       ir.Table
	AutoLike    bool
	MaxRows     int
	Counting    bool
	Authorities []ir.Row
}

// Select builds the query for a view request. Every column except the
// "&" marker is projected.
func Select(req ViewRequest) (queryir.Select, error) {
	cond, err := Condition(req.Table, req.AutoLike, req.Authorities)
	if err != nil {
		return queryir.Select{}, err
	}

	fields := make([]string, 0, len(req.Table.Columns))
	for _, c := range req.Table.Columns {
		if c.Name != ir.AndFieldName {
			fields = append(fields, c.Name)
		}
	}

	limit := 0
	if req.MaxRows > 0 {
		limit = req.MaxRows
	}
	return queryir.Select{
		From:   req.Table.Name,
		Fields: fields,
		Filter: cond,
		Count:  req.Counting,
		Limit:  limit,
	}, nil
}

// View compiles a view request to SQL and its parameters.
func View(req ViewRequest) (string, []any, error) {
	q, err := Select(req)
	if err != nil {
		return "", nil, err
	}
	sql, params, err := querysql.NewSQLCompiler().Compile(q)
	if err != nil {
		return "", nil, &InvalidFilterError{Table: req.Table.Name, Reason: err.Error()}
	}
	return sql, params, nil
}

// WhereClause compiles only the condition of a filter table, without any
// security fragment. The neutral condition renders as "1 = 1".
func WhereClause(t ir.Table, autoLike bool) (string, []any, error) {
	cond, err := Condition(t, autoLike, nil)
	if err != nil {
		return "", nil, err
	}
	sql, params, err := querysql.NewSQLCompiler().CompilePredicate(cond)
	if err != nil {
		return "", nil, fmt.Errorf("where clause for %q: %w", t.Name, err)
	}
	return sql, params, nil
}
