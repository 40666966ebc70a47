package security

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tablegate/internal/filter"
	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/store"
)

// System relations read by the service.
const (
	PrivilegeTable = "xtcasUserPrivilege"
	PrivilegeView  = "xvcasUserPrivileges"
)

// Service resolves privileges against the authorization tables.
type Service struct {
	enabled bool
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService creates a Service. A disabled service reports no privilege
// stores, so every request is allowed and no row-level security applies.
func NewService(enabled bool, opts ...Option) *Service {
	s := &Service{enabled: enabled, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasPrivilegeStores reports whether privilege checks apply: security is
// enabled and the privilege table exists. An empty privilege table grants
// nothing, so every request is then denied.
func (s *Service) HasPrivilegeStores(ctx context.Context, q store.Querier) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", PrivilegeTable).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup privilege table: %w", err)
	}
	return n > 0, nil
}

// privilegeFilter builds the lookup of one relation for every authority of
// the caller. Rows OR together, so any matching group grants access.
func privilegeFilter(sc ir.SecurityContext, tableName string) ir.Table {
	t := ir.NewTable(PrivilegeView,
		ir.NewColumn("PrivilegeKeyText", ir.TypeString),
		ir.NewColumn("AuthorityName", ir.TypeString),
		ir.NewColumn("RowLevelSecurity", ir.TypeBoolean),
		ir.NewColumn("SecurityToken", ir.TypeString),
	)
	for _, auth := range sc.Authorities {
		t.AddRow(
			ir.String(tableName).WithRule("="),
			ir.String(auth).WithRule("="),
			nil,
			nil,
		)
	}
	return t
}

// PrivilegePermissions returns the caller's privilege rows for tableName.
// The rows follow the filter.Auth* layout. An empty result means the
// caller may not use the relation.
func (s *Service) PrivilegePermissions(ctx context.Context, q store.Querier, sc ir.SecurityContext, tableName string) ([]ir.Row, error) {
	if len(sc.Authorities) == 0 {
		s.logger.Debug("no authorities", "user", sc.User, "table", tableName)
		return nil, nil
	}

	sql, params, err := filter.View(filter.ViewRequest{Table: privilegeFilter(sc, tableName)})
	if err != nil {
		return nil, fmt.Errorf("privilege lookup for %q: %w", tableName, err)
	}
	rows, err := store.QueryTable(ctx, q, PrivilegeView, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("privilege lookup for %q: %w", tableName, err)
	}

	s.logger.Debug("privilege lookup",
		"user", sc.User,
		"table", tableName,
		"rows", len(rows.Rows),
	)
	return rows.Rows, nil
}

// Authorities returns the rows that drive row-level security for a view
// request. Nil when security is disabled.
func (s *Service) Authorities(ctx context.Context, q store.Querier, sc ir.SecurityContext, tableName string) ([]ir.Row, error) {
	if !s.enabled {
		return nil, nil
	}
	return s.PrivilegePermissions(ctx, q, sc, tableName)
}

// CheckerMapping runs a filter over xtcasUserPrivilege and returns the
// matching (KeyText, TransactionChecker) rows.
func (s *Service) CheckerMapping(ctx context.Context, q store.Querier, f ir.Table) (ir.Table, error) {
	f.Name = PrivilegeTable
	sql, params, err := filter.View(filter.ViewRequest{Table: f})
	if err != nil {
		return ir.Table{}, fmt.Errorf("checker mapping: %w", err)
	}
	t, err := store.QueryTable(ctx, q, PrivilegeTable, sql, params...)
	if err != nil {
		return ir.Table{}, fmt.Errorf("checker mapping: %w", err)
	}
	return t, nil
}

// UserAuthorities returns the group names assigned to a user, sorted.
func (s *Service) UserAuthorities(ctx context.Context, q store.Querier, user string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT Authority FROM xtcasAuthorities
		WHERE Username = ? AND LastAction > 0
		ORDER BY Authority ASC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("authorities of %q: %w", user, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scan authority: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
