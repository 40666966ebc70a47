package engine

import (
	"context"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/store"
)

// Columns of the checker mapping lookup over the privilege table.
const (
	mappingSource  = "KeyText"
	mappingChecker = "TransactionChecker"
	mappingAction  = "LastAction"
)

// checkerMappingFilter builds the lookup of the checkers registered for
// the procedures of a batch: one row per item, OR-ed together. Deleted
// privileges (LastAction <= 0) are excluded.
func checkerMappingFilter(items []ir.TransactionItem) ir.Table {
	f := ir.NewTable("",
		ir.NewColumn(mappingSource, ir.TypeString),
		ir.NewColumn(mappingChecker, ir.TypeString),
		ir.NewColumn(mappingAction, ir.TypeLong),
	)
	for _, item := range items {
		f.AddRow(ir.String(item.Table.Name).WithRule("="), nil, ir.Long(0).WithRule(">"))
	}
	return f
}

// deriveFollowUps turns the checker mapping of the executed primaries into
// checker calls.
//
// For each mapping row naming a checker, the results whose output table
// carries the source procedure's name are checked; when none do, the first
// result of the batch is. Each checked result yields one item named
// <source><checker> with one KeyLong row per output row.
func (o *Orchestrator) deriveFollowUps(ctx context.Context, q store.Querier, items []ir.TransactionItem, results []ir.ItemResult, seq *seqCounter) ([]ir.TransactionItem, error) {
	mapping, err := o.auth.CheckerMapping(ctx, q, checkerMappingFilter(items))
	if err != nil {
		return nil, err
	}
	// The primaries ran, so each of them must have a privilege row.
	if len(mapping.Rows) == 0 {
		return nil, &PrivilegeError{}
	}
	if len(results) == 0 {
		return nil, nil
	}

	sourceCol := mapping.ColumnIndex(mappingSource)
	checkerCol := mapping.ColumnIndex(mappingChecker)
	fallback := fallbackKey(results[0])

	var followUps []ir.TransactionItem
	for _, row := range mapping.Rows {
		source := text(row, sourceCol)
		checker := text(row, checkerCol)
		if checker == "" {
			continue
		}

		checked := resultsNamed(results, source)
		if len(checked) == 0 {
			checked = results[:1]
		}
		for _, r := range checked {
			followUps = append(followUps, ir.TransactionItem{
				ID:    source + checker,
				Seq:   seq.Next(),
				Table: checkerCall(checker, r, fallback),
			})
		}
	}
	return followUps, nil
}

// checkerCall builds the checker's argument table from one result.
// A result without output rows gets a single row holding the fallback key.
func checkerCall(checker string, r ir.ItemResult, fallback *ir.Value) ir.Table {
	t := ir.NewTable(checker, ir.NewColumn(KeyColumn, ir.TypeInteger))

	var out *ir.Table
	if r.Result != nil {
		out = r.Result.OutputParameters
	}
	if out == nil || len(out.Rows) == 0 {
		t.AddRow(fallback)
		return t
	}
	for i := range out.Rows {
		v, ok := out.Value(i, KeyColumn)
		if !ok || v == nil {
			v = fallback
		}
		t.AddRow(asInteger(v))
	}
	return t
}

// fallbackKey returns the KeyLong of the first output row of r, or an
// integer NULL.
func fallbackKey(r ir.ItemResult) *ir.Value {
	if r.Result != nil && r.Result.OutputParameters != nil {
		if v, ok := r.Result.OutputParameters.Value(0, KeyColumn); ok && v != nil {
			return asInteger(v)
		}
	}
	return ir.Null(ir.TypeInteger)
}

// resultsNamed returns the results whose output table is called name.
func resultsNamed(results []ir.ItemResult, name string) []ir.ItemResult {
	var out []ir.ItemResult
	for _, r := range results {
		if r.Result != nil && r.Result.OutputParameters != nil && r.Result.OutputParameters.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// asInteger converts a key value to the checker's integer column.
func asInteger(v *ir.Value) *ir.Value {
	if v.Type() == ir.TypeInteger {
		return v.WithRule("")
	}
	if v.IsNull() {
		return ir.Null(ir.TypeInteger)
	}
	if n, ok := v.Int64(); ok {
		return ir.Int(n)
	}
	if parsed, err := ir.ParseValue(ir.TypeInteger, v.Text()); err == nil {
		return parsed
	}
	return v.WithRule("")
}

func text(row ir.Row, col int) string {
	if col < 0 || col >= len(row.Values) || row.Values[col] == nil {
		return ""
	}
	return row.Values[col].Text()
}
