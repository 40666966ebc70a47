package security

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tablegate/internal/store"
)

// AdminGroup is the group CreateOrUpdateAdminUser grants every privilege to.
const AdminGroup = "admin"

// FindOrCreatePrivilege returns the key of the named privilege, creating it
// when missing. A non-empty checker replaces the stored TransactionChecker.
func FindOrCreatePrivilege(ctx context.Context, q store.Querier, name, checker string) (int64, error) {
	key, err := lookupKey(ctx, q, "SELECT KeyLong FROM xtcasUserPrivilege WHERE KeyText = ?", name)
	if err != nil {
		return 0, fmt.Errorf("find privilege %q: %w", name, err)
	}
	if key == 0 {
		res, err := q.ExecContext(ctx,
			"INSERT INTO xtcasUserPrivilege (KeyText, TransactionChecker) VALUES (?, ?)",
			name, nullString(checker))
		if err != nil {
			return 0, fmt.Errorf("create privilege %q: %w", name, err)
		}
		return res.LastInsertId()
	}
	if checker != "" {
		if _, err := q.ExecContext(ctx,
			"UPDATE xtcasUserPrivilege SET TransactionChecker = ?, LastAction = 2 WHERE KeyLong = ?",
			checker, key); err != nil {
			return 0, fmt.Errorf("update privilege %q: %w", name, err)
		}
	}
	return key, nil
}

// CreateOrUpdateUserGroup creates a group or appends new tokens to its
// SecurityToken. Tokens are "#"-separated; tokens already present are not
// appended again, so "#a" then "#b" then "#a" yields "#a#b".
func CreateOrUpdateUserGroup(ctx context.Context, q store.Querier, name, token string) (int64, error) {
	var (
		key      int64
		existing sql.NullString
	)
	err := q.QueryRowContext(ctx,
		"SELECT KeyLong, SecurityToken FROM xtcasUserGroup WHERE KeyText = ?", name,
	).Scan(&key, &existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx,
			"INSERT INTO xtcasUserGroup (KeyText, SecurityToken) VALUES (?, ?)",
			name, nullString(mergeTokens("", token)))
		if err != nil {
			return 0, fmt.Errorf("create group %q: %w", name, err)
		}
		return res.LastInsertId()
	case err != nil:
		return 0, fmt.Errorf("find group %q: %w", name, err)
	}

	merged := mergeTokens(existing.String, token)
	if merged != existing.String {
		if _, err := q.ExecContext(ctx,
			"UPDATE xtcasUserGroup SET SecurityToken = ?, LastAction = 2 WHERE KeyLong = ?",
			merged, key); err != nil {
			return 0, fmt.Errorf("update group %q: %w", name, err)
		}
	}
	return key, nil
}

// mergeTokens appends the tokens of add missing from existing.
func mergeTokens(existing, add string) string {
	have := make(map[string]bool)
	for _, tok := range strings.Split(existing, "#") {
		if tok != "" {
			have[tok] = true
		}
	}
	out := existing
	for _, tok := range strings.Split(add, "#") {
		tok = strings.TrimSpace(tok)
		if tok == "" || have[tok] {
			continue
		}
		have[tok] = true
		out += "#" + tok
	}
	return out
}

// FindOrCreateUser returns the key of the named user, creating it with
// password when missing. An existing password is never overwritten.
func FindOrCreateUser(ctx context.Context, q store.Querier, name, password string) (int64, error) {
	key, err := lookupKey(ctx, q, "SELECT KeyLong FROM xtcasUsers WHERE Username = ?", name)
	if err != nil {
		return 0, fmt.Errorf("find user %q: %w", name, err)
	}
	if key != 0 {
		return key, nil
	}
	res, err := q.ExecContext(ctx,
		"INSERT INTO xtcasUsers (Username, Password) VALUES (?, ?)", name, password)
	if err != nil {
		return 0, fmt.Errorf("create user %q: %w", name, err)
	}
	return res.LastInsertId()
}

// AddAuthority assigns a user to a group. Assigning twice is a no-op.
func AddAuthority(ctx context.Context, q store.Querier, user, group string) error {
	_, err := q.ExecContext(ctx,
		"INSERT OR IGNORE INTO xtcasAuthorities (Username, Authority) VALUES (?, ?)", user, group)
	if err != nil {
		return fmt.Errorf("add authority %q to %q: %w", group, user, err)
	}
	return nil
}

// Grant links a privilege to a group, creating both if needed.
// rowLevelSecurity marks the link as restricted by the group's tokens.
func Grant(ctx context.Context, q store.Querier, privilege, group string, rowLevelSecurity bool) error {
	pk, err := FindOrCreatePrivilege(ctx, q, privilege, "")
	if err != nil {
		return err
	}
	gk, err := CreateOrUpdateUserGroup(ctx, q, group, "")
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO xtcasLuUserPrivilegeUserGroup (UserPrivilegeKey, UserGroupKey, RowLevelSecurity)
		VALUES (?, ?, ?)
		ON CONFLICT (UserPrivilegeKey, UserGroupKey)
		DO UPDATE SET RowLevelSecurity = excluded.RowLevelSecurity, LastAction = 2
	`, pk, gk, rowLevelSecurity)
	if err != nil {
		return fmt.Errorf("grant %q to %q: %w", privilege, group, err)
	}
	return nil
}

// CreateOrUpdateAdminUser makes sure the user exists, belongs to the admin
// group, and that the admin group holds every privilege defined so far.
// Call it again after adding privileges to extend the grant.
func CreateOrUpdateAdminUser(ctx context.Context, q store.Querier, name, password string) error {
	if _, err := FindOrCreateUser(ctx, q, name, password); err != nil {
		return err
	}
	gk, err := CreateOrUpdateUserGroup(ctx, q, AdminGroup, "#"+AdminGroup)
	if err != nil {
		return err
	}
	if err := AddAuthority(ctx, q, name, AdminGroup); err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT OR IGNORE INTO xtcasLuUserPrivilegeUserGroup (UserPrivilegeKey, UserGroupKey)
		SELECT KeyLong, ? FROM xtcasUserPrivilege WHERE LastAction > 0
	`, gk)
	if err != nil {
		return fmt.Errorf("grant privileges to %q: %w", AdminGroup, err)
	}
	return nil
}

// lookupKey returns the KeyLong selected by query, or 0 when no row matches.
func lookupKey(ctx context.Context, q store.Querier, query string, args ...any) (int64, error) {
	var key int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return key, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
