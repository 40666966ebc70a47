package querysql

import (
	"strings"

	"github.com/roach88/tablegate/internal/ir"
)

// CallString renders a procedure call in JDBC escape syntax with one
// placeholder per column, e.g. "{call xpcorInsert(?,?,?)}".
// Used for logging; the SQLite executor runs catalog statements instead.
func CallString(t ir.Table) string {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",")
	return "{call " + t.Name + "(" + marks + ")}"
}
