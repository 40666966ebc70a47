package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablegate/internal/store"
)

const ordersCUE = `package orders

procedure: xpcorInsertOrder: {
	description: "Insert one order"
	params: {
		KeyLong: {type: "long", direction: "output"}
		Name: {type: "string"}
	}
	exec: ["INSERT INTO orders (Name) VALUES (:Name)"]
	output: "SELECT last_insert_rowid() AS KeyLong"
}

procedure: xpcorCheckOrder: {
	params: KeyLong: {type: "integer"}
	assert: ["SELECT COUNT(*) FROM orders WHERE KeyLong = :KeyLong AND Name <> 'forbidden'"]
}
`

const ordersTableSQL = "CREATE TABLE orders (KeyLong INTEGER PRIMARY KEY AUTOINCREMENT, Name TEXT NOT NULL, SecurityToken TEXT)"

// writeFile writes content to name inside dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ordersCatalogDir writes the orders catalog into a fresh directory.
func ordersCatalogDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "catalog")
	writeFile(t, dir, "orders.cue", ordersCUE)
	return dir
}

// ordersDB creates a database file holding the orders table plus the
// given statements.
func ordersDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tablegate.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Exec(t.Context(), append([]string{ordersTableSQL}, statements...)...))
	require.NoError(t, st.Close())
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
