package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/roach88/tablegate/internal/catalog"
	"github.com/roach88/tablegate/internal/config"
	"github.com/roach88/tablegate/internal/engine"
	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/procedure"
	"github.com/roach88/tablegate/internal/security"
	"github.com/roach88/tablegate/internal/store"
)

// env is what a database command runs against: the opened store, the
// privilege service and, for batch commands, the compiled catalog.
type env struct {
	cfg     *config.Config
	store   *store.Store
	catalog *catalog.Catalog
	auth    *security.Service
	logger  *slog.Logger
}

// openEnv opens the configured database. withCatalog also loads the
// procedure catalog; a catalog with errors is refused.
func (o *RootOptions) openEnv(withCatalog bool) (*env, error) {
	cfg := o.config()
	logger := o.logger()

	e := &env{
		cfg:    cfg,
		auth:   security.NewService(cfg.Security.Enabled, security.WithLogger(logger)),
		logger: logger,
	}

	if withCatalog {
		cat, err := loadCatalog(cfg.Catalog)
		if err != nil {
			return nil, err
		}
		e.catalog = cat
		logger.Debug("catalog loaded", "dir", cfg.Catalog, "procedures", cat.Len())
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeDatabase, fmt.Errorf("open database %s: %w", cfg.Database, err))
	}
	e.store = st
	logger.Debug("database ready", "path", cfg.Database)
	return e, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing database", "error", err)
	}
}

func (e *env) orchestrator(opts ...engine.Option) *engine.Orchestrator {
	opts = append([]engine.Option{
		engine.WithLogger(e.logger),
		engine.WithMaxItems(e.cfg.Engine.MaxItems),
	}, opts...)
	runner := procedure.NewExecutor(e.catalog, procedure.WithLogger(e.logger))
	return engine.New(e.store, runner, e.auth, opts...)
}

func (e *env) viewer() *engine.Viewer {
	return engine.NewViewer(e.store, e.auth, e.logger)
}

// securityContext builds the caller. Without explicit authorities the
// user's groups are read from the authorization tables.
func (e *env) securityContext(ctx context.Context, user string, authorities []string) (ir.SecurityContext, error) {
	sc := ir.SecurityContext{User: user, Authorities: authorities}
	if len(authorities) > 0 || user == "" {
		return sc, nil
	}
	groups, err := e.auth.UserAuthorities(ctx, e.store.DB(), user)
	if err != nil {
		return sc, WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}
	sc.Authorities = groups
	return sc, nil
}

// loadCatalog loads dir and fails on the first catalog error.
func loadCatalog(dir string) (*catalog.Catalog, error) {
	loaded, errs := catalog.Load(dir)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", errs[0])
	}
	return loaded.Catalog, nil
}

// readJSON decodes the file at path into v, rejecting unknown fields.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeInput, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeInput, fmt.Errorf("%s: %w", path, err))
	}
	return nil
}
