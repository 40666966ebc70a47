package filter

import (
	"strings"

	"github.com/roach88/tablegate/internal/ir"
)

// Positions of the values in an authority row. Rows are read from the
// xvcasUserPrivileges view in this column order.
const (
	AuthPrivilege = iota
	AuthName
	AuthRowLevelSecurity
	AuthSecurityToken
)

// SecurityColumn is the column every row-level-secured relation carries.
const SecurityColumn = "SecurityToken"

// RowLevelSecurity renders the security fragment for the given authority
// rows, or "" when none of them enables row-level security.
//
// Tokens come from the group's SecurityToken ("#a#b" holds two tokens) or,
// when that is empty, from the authority name. Rows without a token in the
// secured column stay visible:
//
//	(SecurityToken IS NULL OR SecurityToken IN ('a', 'b'))
//
// The tokens are literals because they never appear in the client's table.
func RowLevelSecurity(authorities []ir.Row) string {
	var tokens []string
	seen := make(map[string]bool)
	for _, row := range authorities {
		if !rlsEnabled(row) {
			continue
		}
		for _, tok := range rowTokens(row) {
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	if len(tokens) == 0 {
		return ""
	}

	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = "'" + strings.ReplaceAll(tok, "'", "''") + "'"
	}
	return "(" + SecurityColumn + " IS NULL OR " + SecurityColumn + " IN (" + strings.Join(quoted, ", ") + "))"
}

func rlsEnabled(row ir.Row) bool {
	v := valueAt(row, AuthRowLevelSecurity)
	if v == nil {
		return false
	}
	if b, ok := v.Bool(); ok {
		return b
	}
	n, ok := v.Int64()
	return ok && n != 0
}

func rowTokens(row ir.Row) []string {
	var tokens []string
	if v := valueAt(row, AuthSecurityToken); v != nil {
		for _, tok := range strings.Split(v.Text(), "#") {
			if tok = strings.TrimSpace(tok); tok != "" {
				tokens = append(tokens, tok)
			}
		}
	}
	if len(tokens) == 0 {
		if v := valueAt(row, AuthName); v != nil && v.Text() != "" {
			tokens = append(tokens, v.Text())
		}
	}
	return tokens
}

func valueAt(row ir.Row, i int) *ir.Value {
	if i >= len(row.Values) {
		return nil
	}
	return row.Values[i]
}
