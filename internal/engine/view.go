package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tablegate/internal/filter"
	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/store"
)

// ViewRequest is a standalone filter request: the filter table plus the
// paging and counting switches.
type ViewRequest struct {
	Table    ir.Table
	AutoLike bool
	MaxRows  int
	Counting bool
}

// Viewer answers view requests. When privilege checks apply the caller
// needs a privilege row for the relation, and row-level security narrows
// the result to the caller's tokens.
type Viewer struct {
	store  *store.Store
	auth   Authorizer
	logger *slog.Logger
}

// NewViewer creates a Viewer. A nil logger means slog.Default().
func NewViewer(s *store.Store, auth Authorizer, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Viewer{store: s, auth: auth, logger: logger}
}

// Prepare authorizes the request and compiles it to SQL and parameters.
func (v *Viewer) Prepare(ctx context.Context, sc ir.SecurityContext, req ViewRequest) (string, []any, error) {
	q := v.store.DB()

	var authorities []ir.Row
	secured, err := v.auth.HasPrivilegeStores(ctx, q)
	if err != nil {
		return "", nil, err
	}
	if secured {
		authorities, err = v.auth.PrivilegePermissions(ctx, q, sc, req.Table.Name)
		if err != nil {
			return "", nil, err
		}
		if len(authorities) == 0 {
			return "", nil, &PrivilegeError{Table: req.Table.Name, User: sc.User}
		}
	}

	sql, params, err := filter.View(filter.ViewRequest{
		Table:       req.Table,
		AutoLike:    req.AutoLike,
		MaxRows:     req.MaxRows,
		Counting:    req.Counting,
		Authorities: authorities,
	})
	if err != nil {
		return "", nil, err
	}
	v.logger.Debug("view prepared", "table", req.Table.Name, "user", sc.User, "sql", sql)
	return sql, params, nil
}

// View runs the request and returns the matching rows, or a single
// count row when counting.
func (v *Viewer) View(ctx context.Context, sc ir.SecurityContext, req ViewRequest) (ir.Table, error) {
	sql, params, err := v.Prepare(ctx, sc, req)
	if err != nil {
		return ir.Table{}, err
	}
	t, err := store.QueryTable(ctx, v.store.DB(), req.Table.Name, sql, params...)
	if err != nil {
		return ir.Table{}, fmt.Errorf("view %s: %w", req.Table.Name, err)
	}
	v.logger.Info("view", "table", req.Table.Name, "user", sc.User, "rows", len(t.Rows))
	return t, nil
}
