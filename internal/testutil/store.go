// Package testutil holds fixtures shared by package tests and the scenario
// harness.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tablegate/internal/catalog"
	"github.com/roach88/tablegate/internal/store"
)

// OpenStore opens a store in a fresh temporary directory, closed when the
// test ends. Statements run in order after the schema is applied.
func OpenStore(t testing.TB, statements ...string) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	if len(statements) > 0 {
		require.NoError(t, s.Exec(t.Context(), statements...))
	}
	return s
}

// Catalog compiles CUE source and fails the test on any error.
func Catalog(t testing.TB, src string) *catalog.Catalog {
	t.Helper()
	cat, errs := catalog.CompileString(src)
	require.Empty(t, errs)
	return cat
}
