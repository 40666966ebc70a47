package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/tablegate/internal/catalog"
	"github.com/roach88/tablegate/internal/engine"
	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/procedure"
	"github.com/roach88/tablegate/internal/resolve"
	"github.com/roach88/tablegate/internal/security"
	"github.com/roach88/tablegate/internal/store"
	"github.com/roach88/tablegate/internal/testutil"
)

// Error kinds of a rolled back batch.
const (
	ErrorPrivilege    = "privilege"
	ErrorInvalidBatch = "invalid_batch"
	ErrorItemLimit    = "item_limit"
	ErrorResolve      = "resolve"
	ErrorAssertion    = "assertion"
	ErrorProcedure    = "procedure"
)

var errorKinds = []string{
	ErrorPrivilege,
	ErrorInvalidBatch,
	ErrorItemLimit,
	ErrorResolve,
	ErrorAssertion,
	ErrorProcedure,
}

func validErrorKind(kind string) bool {
	return slices.Contains(errorKinds, kind)
}

// ClassifyError maps the cause of a failed batch to an error kind. Checks run
// from the most to the least specific: an assertion failure is also a
// procedure failure.
func ClassifyError(err error) string {
	switch {
	case engine.IsPrivilegeError(err):
		return ErrorPrivilege
	case engine.IsInvalidBatch(err):
		return ErrorInvalidBatch
	case engine.IsItemLimit(err):
		return ErrorItemLimit
	case resolve.IsResolveError(err):
		return ErrorResolve
	case procedure.IsAssertion(err):
		return ErrorAssertion
	default:
		return ErrorProcedure
	}
}

// harness holds the per-scenario database and services.
type harness struct {
	store  *store.Store
	auth   *security.Service
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a fixed batch
// token, so repeated runs produce identical traces.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Load the procedure catalog
//  3. Run setup statements and grants
//  4. Submit the batch through the orchestrator
//  5. Compare the outcome with the expect clause
//  6. Evaluate assertions against the trace and final state
//
// A returned error means the scenario could not be run; a batch that
// rolls back is a regular outcome reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	loaded, errs := catalog.Load(scenario.Catalog)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load catalog %s: %w", scenario.Catalog, errs[0])
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store:  st,
		auth:   security.NewService(scenario.Security, security.WithLogger(logger)),
		logger: logger,
	}

	if err := st.Exec(ctx, scenario.Setup...); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	if err := h.applyGrants(ctx, scenario.Grants); err != nil {
		return nil, fmt.Errorf("failed to apply grants: %w", err)
	}

	sc, err := h.securityContext(ctx, scenario)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithTokenGenerator(testutil.NewFixedToken(scenario.Token)),
	}
	if scenario.MaxItems > 0 {
		opts = append(opts, engine.WithMaxItems(scenario.MaxItems))
	}
	runner := procedure.NewExecutor(loaded.Catalog, procedure.WithLogger(logger))
	orch := engine.New(st, runner, h.auth, opts...)

	result := NewResult()
	results, err := orch.Execute(ctx, sc, scenario.Batch)
	if err != nil {
		batchErr, ok := engine.AsBatchError(err)
		if !ok {
			return nil, fmt.Errorf("failed to execute batch: %w", err)
		}
		result.Outcome = OutcomeRolledBack
		result.ErrorKind = ClassifyError(batchErr.Err)
		result.Message = batchErr.Err.Error()
		results = batchErr.Results
	} else {
		result.Outcome = OutcomeCommitted
	}
	result.Trace = buildTrace(results)

	checkExpect(scenario.Expect, result)

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// applyGrants writes the scenario's privileges, groups and authorities.
func (h *harness) applyGrants(ctx context.Context, grants []Grant) error {
	q := h.store.DB()
	for i, g := range grants {
		if _, err := security.FindOrCreatePrivilege(ctx, q, g.Privilege, g.Checker); err != nil {
			return fmt.Errorf("grants[%d]: %w", i, err)
		}
		if _, err := security.CreateOrUpdateUserGroup(ctx, q, g.Group, g.SecurityToken); err != nil {
			return fmt.Errorf("grants[%d]: %w", i, err)
		}
		if err := security.Grant(ctx, q, g.Privilege, g.Group, g.RowLevelSecurity); err != nil {
			return fmt.Errorf("grants[%d]: %w", i, err)
		}
		for _, user := range g.Users {
			if _, err := security.FindOrCreateUser(ctx, q, user, ""); err != nil {
				return fmt.Errorf("grants[%d]: %w", i, err)
			}
			if err := security.AddAuthority(ctx, q, user, g.Group); err != nil {
				return fmt.Errorf("grants[%d]: %w", i, err)
			}
		}
		h.logger.Debug("grant applied", "privilege", g.Privilege, "group", g.Group)
	}
	return nil
}

// securityContext returns the caller of the batch. Authorities not listed
// in the scenario are read from the authorization tables.
func (h *harness) securityContext(ctx context.Context, scenario *Scenario) (ir.SecurityContext, error) {
	sc := ir.SecurityContext{
		User:        scenario.User,
		Authorities: scenario.Authorities,
	}
	if len(sc.Authorities) > 0 || sc.User == "" {
		return sc, nil
	}
	authorities, err := h.auth.UserAuthorities(ctx, h.store.DB(), sc.User)
	if err != nil {
		return sc, fmt.Errorf("failed to read authorities: %w", err)
	}
	sc.Authorities = authorities
	return sc, nil
}

// buildTrace renders item results as trace events.
func buildTrace(results []ir.ItemResult) []TraceEvent {
	trace := make([]TraceEvent, 0, len(results))
	for _, r := range results {
		event := TraceEvent{
			ID:        r.ID,
			Seq:       r.Seq,
			Procedure: r.Procedure,
		}
		if r.Result != nil {
			if r.Result.ResultSet != nil {
				event.ResultRows = len(r.Result.ResultSet.Rows)
			}
			if out := r.Result.OutputParameters; out != nil {
				event.Outputs = tableRows(*out)
			}
		}
		trace = append(trace, event)
	}
	return trace
}

// tableRows renders each row as column name to text, NULL as nil.
func tableRows(t ir.Table) []map[string]any {
	rows := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			var v any
			if i < len(row.Values) && row.Values[i] != nil && !row.Values[i].IsNull() {
				v = row.Values[i].Text()
			}
			m[col.Name] = v
		}
		rows = append(rows, m)
	}
	return rows
}

// checkExpect compares the batch outcome with the expect clause.
func checkExpect(expect Expect, result *Result) {
	if result.Outcome != expect.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", expect.Outcome, result.Outcome)
		if result.Message != "" {
			msg += ": " + result.Message
		}
		result.AddError(msg)
		return
	}
	if expect.Error != "" && expect.Error != result.ErrorKind {
		result.AddError(fmt.Sprintf("expected error %s, got %s: %s", expect.Error, result.ErrorKind, result.Message))
	}
	if expect.Results == nil {
		return
	}
	ids := make([]string, len(result.Trace))
	for i, e := range result.Trace {
		ids[i] = e.ID
	}
	if !slices.Equal(ids, expect.Results) {
		result.AddError(fmt.Sprintf("expected results %v, got %v", expect.Results, ids))
	}
}
