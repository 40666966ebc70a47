package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Validate(t *testing.T) {
	tbl := NewTable("orders", NewColumn("KeyLong", TypeLong), NewColumn("Name", TypeString))
	tbl.AddRow(Long(1), String("a"))
	require.NoError(t, tbl.Validate())

	tbl.AddRow(Long(2))
	assert.ErrorContains(t, tbl.Validate(), "row 1 has 1 values, want 2")
}

func TestTable_ValidateDuplicateColumn(t *testing.T) {
	tbl := NewTable("orders", NewColumn("Name", TypeString), NewColumn("Name", TypeLong))
	assert.ErrorContains(t, tbl.Validate(), "duplicate column")
}

func TestTable_CloneIsIndependent(t *testing.T) {
	tbl := NewTable("orders", NewColumn("Name", TypeString))
	tbl.AddRow(String("a"))

	c := tbl.Clone()
	c.Rows[0].Values[0] = String("b")
	c.Columns[0].Name = "Other"

	assert.Equal(t, "a", tbl.Rows[0].Values[0].Text())
	assert.Equal(t, "Name", tbl.Columns[0].Name)
}

func TestTable_Value(t *testing.T) {
	tbl := NewTable("out", NewColumn("KeyLong", TypeLong))
	tbl.AddRow(Long(42))

	v, ok := tbl.Value(0, "KeyLong")
	require.True(t, ok)
	assert.Equal(t, "42", v.Text())

	_, ok = tbl.Value(1, "KeyLong")
	assert.False(t, ok)
	_, ok = tbl.Value(0, "Missing")
	assert.False(t, ok)
}

func TestBatchHash_Stable(t *testing.T) {
	mk := func() []TransactionItem {
		tbl := NewTable("xpcorInsert", NewColumn("Name", TypeString))
		tbl.AddRow(String("Zoë"))
		return []TransactionItem{{ID: "a", Seq: 1, Table: tbl}}
	}

	h1, err := BatchHash(mk())
	require.NoError(t, err)
	h2, err := BatchHash(mk())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	other := mk()
	other[0].ID = "b"
	h3, err := BatchHash(other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestMarshalCanonical_SortsKeysAndRejectsFloats(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{"b": int64(1), "a": "<x>"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<x>","b":1}`, string(out))

	_, err = MarshalCanonical(map[string]any{"f": 1.5})
	assert.Error(t, err)
}
