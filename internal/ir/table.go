package ir

import "fmt"

// Row is an ordered sequence of Values aligned with the owning Table's
// Columns. A nil entry is an untyped NULL.
type Row struct {
	Values []*Value `json:"values"`
}

// NewRow creates a Row from values.
func NewRow(values ...*Value) Row {
	return Row{Values: values}
}

// Table names a relation or procedure and carries its columns and rows.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty Table with the given columns.
func NewTable(name string, columns ...Column) Table {
	return Table{Name: name, Columns: columns}
}

// AddRow appends a row of values.
func (t *Table) AddRow(values ...*Value) {
	t.Rows = append(t.Rows, NewRow(values...))
}

// ColumnIndex returns the position of the named column, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the value at (row, column name).
// ok is false when the row or column does not exist.
func (t Table) Value(row int, column string) (v *Value, ok bool) {
	col := t.ColumnIndex(column)
	if col < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	values := t.Rows[row].Values
	if col >= len(values) {
		return nil, false
	}
	return values[col], true
}

// Validate checks column names are unique and every row is aligned with
// the columns.
func (t Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %q: column %d has no name", t.Name, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %q: duplicate column %q", t.Name, c.Name)
		}
		seen[c.Name] = true
		if !c.Type.IsValid() {
			return fmt.Errorf("table %q: column %q has unknown type %q", t.Name, c.Name, c.Type)
		}
		if !c.Output.IsValid() {
			return fmt.Errorf("table %q: column %q has unknown output type %q", t.Name, c.Name, c.Output)
		}
	}
	for i, r := range t.Rows {
		if len(r.Values) != len(t.Columns) {
			return fmt.Errorf("table %q: row %d has %d values, want %d", t.Name, i, len(r.Values), len(t.Columns))
		}
	}
	return nil
}

// Clone returns a copy of t whose columns and rows can be modified
// without affecting t. Values are shared since they are immutable.
func (t Table) Clone() Table {
	c := Table{Name: t.Name}
	if t.Columns != nil {
		c.Columns = make([]Column, len(t.Columns))
		copy(c.Columns, t.Columns)
	}
	if t.Rows != nil {
		c.Rows = make([]Row, len(t.Rows))
		for i, r := range t.Rows {
			values := make([]*Value, len(r.Values))
			copy(values, r.Values)
			c.Rows[i] = Row{Values: values}
		}
	}
	return c
}
