package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/store"
)

// fakeAuth answers privilege questions from memory.
type fakeAuth struct {
	secured bool
	allowed map[string]bool
	mapping ir.Table
	lookups []ir.Table
}

func (f *fakeAuth) HasPrivilegeStores(context.Context, store.Querier) (bool, error) {
	return f.secured, nil
}

func (f *fakeAuth) PrivilegePermissions(_ context.Context, _ store.Querier, _ ir.SecurityContext, name string) ([]ir.Row, error) {
	if f.allowed[name] {
		return []ir.Row{ir.NewRow(ir.String(name))}, nil
	}
	return nil, nil
}

func (f *fakeAuth) CheckerMapping(_ context.Context, _ store.Querier, filter ir.Table) (ir.Table, error) {
	f.lookups = append(f.lookups, filter)
	return f.mapping, nil
}

// mappingTable builds checker mapping rows from source/checker pairs.
// An empty checker is stored as NULL.
func mappingTable(pairs ...string) ir.Table {
	t := ir.NewTable("xtcasUserPrivilege",
		ir.NewColumn("KeyText", ir.TypeString),
		ir.NewColumn("TransactionChecker", ir.TypeString),
	)
	for i := 0; i+1 < len(pairs); i += 2 {
		checker := ir.Null(ir.TypeString)
		if pairs[i+1] != "" {
			checker = ir.String(pairs[i+1])
		}
		t.AddRow(ir.String(pairs[i]), checker)
	}
	return t
}

func outputResult(id, name string, keys ...int64) ir.ItemResult {
	out := ir.NewTable(name, ir.NewOutputColumn("KeyLong", ir.TypeLong))
	for _, k := range keys {
		out.AddRow(ir.Long(k))
	}
	return ir.ItemResult{ID: id, Result: &ir.ProcedureResult{OutputParameters: &out}}
}

func primaries(names ...string) []ir.TransactionItem {
	items := make([]ir.TransactionItem, len(names))
	for i, n := range names {
		items[i] = ir.TransactionItem{ID: "i" + n, Seq: int64(i + 1), Table: ir.NewTable(n)}
	}
	return items
}

func derive(t *testing.T, auth *fakeAuth, items []ir.TransactionItem, results []ir.ItemResult) ([]ir.TransactionItem, error) {
	t.Helper()
	o := New(nil, nil, auth)
	return o.deriveFollowUps(t.Context(), nil, items, results, seqAfter(items))
}

func keys(t *testing.T, tbl ir.Table) []string {
	t.Helper()
	var out []string
	for i := range tbl.Rows {
		v, ok := tbl.Value(i, KeyColumn)
		require.True(t, ok)
		assert.Equal(t, ir.TypeInteger, v.Type())
		out = append(out, v.Text())
	}
	return out
}

func TestDeriveFollowUps_OnePerMatchingSource(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "ckA", "B", "ckB")}
	results := []ir.ItemResult{
		outputResult("iA", "A", 7),
		outputResult("iB", "B", 8, 9),
	}

	got, err := derive(t, auth, primaries("A", "B"), results)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "AckA", got[0].ID)
	assert.Equal(t, "ckA", got[0].Table.Name)
	assert.Equal(t, int64(3), got[0].Seq)
	assert.Equal(t, []string{"7"}, keys(t, got[0].Table))

	assert.Equal(t, "BckB", got[1].ID)
	assert.Equal(t, "ckB", got[1].Table.Name)
	assert.Equal(t, int64(4), got[1].Seq)
	assert.Equal(t, []string{"8", "9"}, keys(t, got[1].Table))
}

func TestDeriveFollowUps_FallsBackToFirstResult(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "ckA", "B", "ckB")}
	results := []ir.ItemResult{
		outputResult("iA", "A", 7),
		outputResult("iB", "Renamed", 8),
	}

	got, err := derive(t, auth, primaries("A", "B"), results)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BckB", got[1].ID)
	assert.Equal(t, []string{"7"}, keys(t, got[1].Table), "B has no result named B, so the first result is checked")
}

func TestDeriveFollowUps_EveryResultOfTheSource(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "ckA")}
	results := []ir.ItemResult{
		outputResult("first", "A", 1),
		outputResult("second", "A", 2),
	}

	got, err := derive(t, auth, primaries("A", "A"), results)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AckA", got[0].ID)
	assert.Equal(t, "AckA", got[1].ID)
	assert.Equal(t, []string{"1"}, keys(t, got[0].Table))
	assert.Equal(t, []string{"2"}, keys(t, got[1].Table))
}

func TestDeriveFollowUps_NoOutputsUsesFallbackRow(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "ckA")}
	results := []ir.ItemResult{{ID: "iA", Result: &ir.ProcedureResult{}}}

	got, err := derive(t, auth, primaries("A"), results)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Table.Rows, 1)
	v, _ := got[0].Table.Value(0, KeyColumn)
	assert.True(t, v.IsNull())
	assert.Equal(t, ir.TypeInteger, v.Type())
}

func TestDeriveFollowUps_MissingKeyColumnUsesFirstKey(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "ckA", "B", "ckB")}
	other := ir.NewTable("B", ir.NewOutputColumn("Code", ir.TypeString))
	other.AddRow(ir.String("x"))
	results := []ir.ItemResult{
		outputResult("iA", "A", 7),
		{ID: "iB", Result: &ir.ProcedureResult{OutputParameters: &other}},
	}

	got, err := derive(t, auth, primaries("A", "B"), results)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"7"}, keys(t, got[1].Table))
}

func TestDeriveFollowUps_SkipsRowsWithoutChecker(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "", "B", "ckB")}
	results := []ir.ItemResult{outputResult("iA", "A", 1), outputResult("iB", "B", 2)}

	got, err := derive(t, auth, primaries("A", "B"), results)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "BckB", got[0].ID)
}

func TestDeriveFollowUps_NoMappingIsPrivilegeError(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable()}

	_, err := derive(t, auth, primaries("A"), []ir.ItemResult{outputResult("iA", "A", 1)})
	require.Error(t, err)
	assert.True(t, IsPrivilegeError(err))
}

func TestDeriveFollowUps_LooksUpEveryPrimary(t *testing.T) {
	auth := &fakeAuth{mapping: mappingTable("A", "")}

	_, err := derive(t, auth, primaries("A", "B"), []ir.ItemResult{outputResult("iA", "A", 1)})
	require.NoError(t, err)
	require.Len(t, auth.lookups, 1)

	f := auth.lookups[0]
	assert.Equal(t, []string{"KeyText", "TransactionChecker", "LastAction"},
		[]string{f.Columns[0].Name, f.Columns[1].Name, f.Columns[2].Name})
	require.Len(t, f.Rows, 2)
	assert.Equal(t, "A", f.Rows[0].Values[0].Text())
	assert.Equal(t, "=", f.Rows[0].Values[0].Rule())
	assert.Nil(t, f.Rows[0].Values[1])
	assert.Equal(t, "B", f.Rows[1].Values[0].Text())
	for _, row := range f.Rows {
		assert.Equal(t, ">", row.Values[2].Rule(), "deleted privileges are excluded")
		assert.Equal(t, "0", row.Values[2].Text())
	}
}
