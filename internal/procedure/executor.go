// Package procedure executes catalog procedures against the database.
package procedure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tablegate/internal/catalog"
	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/querysql"
	"github.com/roach88/tablegate/internal/store"
)

// UnknownProcedureError is returned for a table naming no catalog entry.
type UnknownProcedureError struct {
	Name string
}

func (e *UnknownProcedureError) Error() string {
	return fmt.Sprintf("unknown procedure %q", e.Name)
}

// AssertionError is returned when an assert query of a procedure does not
// hold for an input row.
type AssertionError struct {
	Procedure string
	Row       int
	Statement string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("procedure %s: assertion failed for row %d: %s", e.Procedure, e.Row, e.Statement)
}

// IsAssertion reports whether err is or wraps an AssertionError.
func IsAssertion(err error) bool {
	var target *AssertionError
	return errors.As(err, &target)
}

// Executor runs catalog procedures.
type Executor struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an Executor over a catalog.
func NewExecutor(c *catalog.Catalog, opts ...Option) *Executor {
	e := &Executor{catalog: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute calls the procedure named by t once per row of t, or once with
// no arguments when t has no rows.
//
// Columns of t bind to the parameters of the same name; columns the
// procedure does not declare are an error. Per call, the exec statements
// run, then the output query (its first row is appended to the output
// parameters), then the asserts, then the result query (its rows are
// appended to the result set). Output values are bound before the asserts
// and the result query run, so they can refer to :KeyLong and the like.
func (e *Executor) Execute(ctx context.Context, q store.Querier, t ir.Table) (*ir.ProcedureResult, error) {
	proc, ok := e.catalog.Lookup(t.Name)
	if !ok {
		return nil, &UnknownProcedureError{Name: t.Name}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	for _, c := range t.Columns {
		if _, ok := proc.Param(c.Name); !ok {
			return nil, fmt.Errorf("procedure %s has no parameter %q", proc.Name, c.Name)
		}
	}

	e.logger.Debug("execute procedure",
		"procedure", proc.Name,
		"call", querysql.CallString(t),
		"rows", len(t.Rows),
	)

	result := &ir.ProcedureResult{}
	calls := len(t.Rows)
	if calls == 0 {
		calls = 1
	}
	for i := 0; i < calls; i++ {
		args := bindRow(proc, t, i)
		if err := e.call(ctx, q, proc, i, args, result); err != nil {
			return result, err
		}
		result.ReturnCodes = append(result.ReturnCodes, 0)
	}
	return result, nil
}

func (e *Executor) call(ctx context.Context, q store.Querier, proc *catalog.Procedure, row int, args map[string]any, result *ir.ProcedureResult) error {
	for _, stmt := range proc.Exec {
		if _, err := q.ExecContext(ctx, stmt, namedArgs(stmt, args)...); err != nil {
			return fmt.Errorf("procedure %s row %d: %w", proc.Name, row, err)
		}
	}

	if proc.Output != "" {
		out, err := store.QueryTable(ctx, q, proc.Name, proc.Output, namedArgs(proc.Output, args)...)
		if err != nil {
			return fmt.Errorf("procedure %s row %d output: %w", proc.Name, row, err)
		}
		if len(out.Rows) == 0 {
			return fmt.Errorf("procedure %s row %d: output query returned no rows", proc.Name, row)
		}
		for ci, c := range out.Columns {
			args[c.Name] = out.Rows[0].Values[ci].Param()
		}
		appendOutput(result, proc, out)
	}

	for _, stmt := range proc.Assert {
		ok, err := holds(ctx, q, stmt, namedArgs(stmt, args))
		if err != nil {
			return fmt.Errorf("procedure %s row %d assert: %w", proc.Name, row, err)
		}
		if !ok {
			return &AssertionError{Procedure: proc.Name, Row: row, Statement: stmt}
		}
	}

	if proc.Result != "" {
		rs, err := store.QueryTable(ctx, q, proc.Name, proc.Result, namedArgs(proc.Result, args)...)
		if err != nil {
			return fmt.Errorf("procedure %s row %d result: %w", proc.Name, row, err)
		}
		if result.ResultSet == nil {
			result.ResultSet = &ir.Table{Name: proc.Name, Columns: rs.Columns}
		}
		result.ResultSet.Rows = append(result.ResultSet.Rows, rs.Rows...)
	}
	return nil
}

// appendOutput adds the first output row, tagging declared output
// parameters as such.
func appendOutput(result *ir.ProcedureResult, proc *catalog.Procedure, out ir.Table) {
	if result.OutputParameters == nil {
		cols := make([]ir.Column, len(out.Columns))
		for i, c := range out.Columns {
			cols[i] = c
			if prm, ok := proc.Param(c.Name); ok {
				cols[i].Type = prm.Type
				cols[i].Output = prm.Direction
			}
		}
		result.OutputParameters = &ir.Table{Name: proc.Name, Columns: cols}
	}
	values := make([]*ir.Value, len(out.Rows[0].Values))
	for i, v := range out.Rows[0].Values {
		values[i] = retype(v, result.OutputParameters.Columns[i].Type)
	}
	result.OutputParameters.AddRow(values...)
}

// retype converts a scanned value to the declared parameter type, keeping
// the scanned value when the conversion does not apply.
func retype(v *ir.Value, t ir.DataType) *ir.Value {
	if v == nil || v.Type() == t {
		return v
	}
	if v.IsNull() {
		return ir.Null(t)
	}
	converted, err := ir.FromDriver(t, v.Param())
	if err != nil {
		return v
	}
	return converted
}

// bindRow maps parameter names to driver values for row i of t.
// Parameters without a column, or with a nil value, bind as NULL.
func bindRow(proc *catalog.Procedure, t ir.Table, i int) map[string]any {
	args := make(map[string]any, len(proc.Params))
	for _, p := range proc.Params {
		args[p.Name] = nil
	}
	if i >= len(t.Rows) {
		return args
	}
	for ci, c := range t.Columns {
		if v := t.Rows[i].Values[ci]; v != nil {
			args[c.Name] = v.Param()
		}
	}
	return args
}

// namedArgs passes only the parameters stmt refers to; database/sql
// rejects an argument count that differs from the statement's.
func namedArgs(stmt string, args map[string]any) []any {
	refs := catalog.ParamRefs(stmt)
	out := make([]any, 0, len(refs))
	for _, name := range refs {
		out = append(out, sql.Named(name, args[name]))
	}
	return out
}

// holds reports whether the first column of the first row is truthy.
func holds(ctx context.Context, q store.Querier, stmt string, args []any) (bool, error) {
	var v any
	err := q.QueryRowContext(ctx, stmt, args...).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return x != "" && x != "0", nil
	case []byte:
		return len(x) > 0 && string(x) != "0", nil
	}
	return true, nil
}
