package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedToken(t *testing.T) {
	gen := NewFixedToken("batch-123")
	assert.Equal(t, "batch-123", gen.Generate())
	assert.Equal(t, "batch-123", gen.Generate())

	assert.Equal(t, DefaultToken, NewFixedToken("").Generate())
}

func TestOpenStore_RunsStatements(t *testing.T) {
	s := OpenStore(t, "CREATE TABLE t (a INTEGER)", "INSERT INTO t VALUES (1)")

	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM t").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCatalog(t *testing.T) {
	cat := Catalog(t, `procedure: xpA: exec: ["SELECT 1"]`)
	assert.Equal(t, []string{"xpA"}, cat.Names())
}
