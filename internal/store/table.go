package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/tablegate/internal/ir"
)

// QueryTable runs a query and collects every row into a Table.
func QueryTable(ctx context.Context, q Querier, name, query string, args ...any) (ir.Table, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return ir.Table{}, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()
	return ScanTable(rows, name)
}

// ScanTable converts a result set into a Table named name.
//
// Column types come from the declared SQLite type. Expression columns have
// no declared type; their type is taken from the first non-NULL value.
// ScanTable does not close rows.
func ScanTable(rows *sql.Rows, name string) (ir.Table, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return ir.Table{}, fmt.Errorf("column types: %w", err)
	}

	t := ir.Table{Name: name, Columns: make([]ir.Column, len(colTypes))}
	known := make([]bool, len(colTypes))
	for i, ct := range colTypes {
		typ, ok := declaredType(ct.DatabaseTypeName())
		t.Columns[i] = ir.NewColumn(ct.Name(), typ)
		known[i] = ok
	}

	var raw [][]any
	for rows.Next() {
		dest := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ir.Table{}, fmt.Errorf("scan %s: %w", name, err)
		}
		raw = append(raw, dest)
	}
	if err := rows.Err(); err != nil {
		return ir.Table{}, fmt.Errorf("iterate %s: %w", name, err)
	}

	for i := range t.Columns {
		if known[i] {
			continue
		}
		for _, r := range raw {
			if r[i] != nil {
				t.Columns[i].Type = ir.InferType(r[i])
				break
			}
		}
	}

	for ri, r := range raw {
		values := make([]*ir.Value, len(r))
		for i, src := range r {
			v, err := ir.FromDriver(t.Columns[i].Type, src)
			if err != nil {
				return ir.Table{}, fmt.Errorf("%s row %d column %q: %w", name, ri, t.Columns[i].Name, err)
			}
			values[i] = v
		}
		t.AddRow(values...)
	}
	return t, nil
}

// declaredType maps a SQLite declared column type to a DataType, following
// SQLite's type affinity rules. ok is false when nothing is declared.
func declaredType(decl string) (ir.DataType, bool) {
	d := strings.ToUpper(strings.TrimSpace(decl))
	switch {
	case d == "":
		return ir.TypeString, false
	case d == "BOOLEAN" || d == "BOOL":
		return ir.TypeBoolean, true
	case d == "DATE" || d == "DATETIME" || d == "TIMESTAMP":
		return ir.TypeInstant, true
	case strings.Contains(d, "INT"):
		return ir.TypeLong, true
	case strings.Contains(d, "CHAR"), strings.Contains(d, "CLOB"), strings.Contains(d, "TEXT"):
		return ir.TypeString, true
	case strings.Contains(d, "BLOB"):
		return ir.TypeBinary, true
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"),
		strings.Contains(d, "NUMERIC"), strings.Contains(d, "DECIMAL"):
		return ir.TypeDecimal, true
	}
	return ir.TypeString, true
}
