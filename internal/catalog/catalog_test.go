package catalog

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablegate/internal/ir"
)

func TestCompileProcedureBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		procedure: xpcorInsertOrder: {
			description: "Creates an order"
			params: {
				KeyLong: {type: "long", direction: "output"}
				Name: {type: "string"}
			}
			exec: ["INSERT INTO orders (Name) VALUES (:Name)"]
			output: "SELECT last_insert_rowid() AS KeyLong"
			result: "SELECT * FROM orders WHERE KeyLong = :KeyLong"
		}
	`)
	require.NoError(t, v.Err())

	p, err := CompileProcedure(v.LookupPath(cue.ParsePath("procedure.xpcorInsertOrder")))
	require.NoError(t, err)

	assert.Equal(t, "xpcorInsertOrder", p.Name)
	assert.Equal(t, "Creates an order", p.Description)
	assert.Equal(t, []Param{
		{Name: "KeyLong", Type: ir.TypeLong, Direction: ir.OutputOutput},
		{Name: "Name", Type: ir.TypeString, Direction: ir.OutputInput},
	}, p.Params)
	assert.Len(t, p.Exec, 1)
	assert.Len(t, p.Statements(), 3)
}

func TestCompileProcedureErrors(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		field string
	}{
		{"no statements", `procedure: xp: {params: A: {type: "long"}}`, "exec"},
		{"unknown type", `procedure: xp: {params: A: {type: "float"}, exec: ["SELECT :A"]}`, "type"},
		{"missing type", `procedure: xp: {params: A: {}, exec: ["SELECT :A"]}`, "type"},
		{"bad direction", `procedure: xp: {params: A: {type: "long", direction: "inout"}, exec: ["SELECT :A"]}`, "direction"},
		{"undeclared param", `procedure: xp: {exec: ["SELECT :Missing"]}`, "params"},
		{"exec not a list", `procedure: xp: {exec: "SELECT 1"}`, "exec"},
		{"output not a string", `procedure: xp: {output: 1}`, "output"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tc.src)
			require.NoError(t, v.Err())

			_, err := CompileProcedure(v.LookupPath(cue.ParsePath("procedure.xp")))
			require.Error(t, err)
			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.field, ce.Field)
		})
	}
}

func TestParamRefs(t *testing.T) {
	assert.Equal(t, []string{"Name", "Amount"}, ParamRefs("INSERT INTO t VALUES (:Name, :Amount, :Name)"))
	assert.Empty(t, ParamRefs("SELECT '10:30', x::text FROM t"))
	assert.Equal(t, []string{"A"}, ParamRefs(":A"))
}

func TestLoad_Directory(t *testing.T) {
	res, errs := Load("testdata/orders")
	require.Empty(t, errs)
	assert.Equal(t, 2, res.FileCount)
	assert.Equal(t, []string{"xpcorCheckOrder", "xpcorInsertOrder"}, res.Catalog.Names())

	p, ok := res.Catalog.Lookup("xpcorCheckOrder")
	require.True(t, ok)
	assert.Len(t, p.Assert, 1)
	prm, ok := p.Param("KeyLong")
	require.True(t, ok)
	assert.Equal(t, ir.TypeInteger, prm.Type)

	_, ok = res.Catalog.Lookup("missing")
	assert.False(t, ok)
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	res, errs := Load("testdata/broken")
	require.Len(t, errs, 3)
	assert.Equal(t, []string{"xpGood"}, res.Catalog.Names())

	codes := map[string]bool{}
	for _, err := range errs {
		var le *LoadError
		require.ErrorAs(t, err, &le)
		codes[le.Code] = true
	}
	assert.True(t, codes[ErrCodeStatements])
	assert.True(t, codes[ErrCodeInvalidType])
	assert.True(t, codes[ErrCodeUndeclared])
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, errs := Load("testdata/nope")
	require.Len(t, errs, 1)
	var le *LoadError
	require.ErrorAs(t, errs[0], &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestCompileString(t *testing.T) {
	cat, errs := CompileString(`procedure: xpPing: {output: "SELECT 1 AS KeyLong"}`)
	require.Empty(t, errs)
	assert.Equal(t, 1, cat.Len())

	_, errs = CompileString(`procedure: {`)
	require.Len(t, errs, 1)

	cat, errs = CompileString(`other: 1`)
	require.Len(t, errs, 1)
	assert.Equal(t, 0, cat.Len())
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New(Procedure{Name: "a"}, Procedure{Name: "a"})
	assert.ErrorContains(t, err, "duplicate procedure")

	var nilCat *Catalog
	_, ok := nilCat.Lookup("a")
	assert.False(t, ok)
}
