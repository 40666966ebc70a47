package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/resolve"
	"github.com/roach88/tablegate/internal/security"
	"github.com/roach88/tablegate/internal/store"
)

// KeyColumn is the column a checker procedure receives and the output
// column it is fed from.
const KeyColumn = "KeyLong"

// Runner executes one procedure call. Implemented by procedure.Executor.
type Runner interface {
	Execute(ctx context.Context, q store.Querier, t ir.Table) (*ir.ProcedureResult, error)
}

// Authorizer answers the privilege questions of a batch. Implemented by
// security.Service.
type Authorizer interface {
	HasPrivilegeStores(ctx context.Context, q store.Querier) (bool, error)
	PrivilegePermissions(ctx context.Context, q store.Querier, sc ir.SecurityContext, tableName string) ([]ir.Row, error)
	CheckerMapping(ctx context.Context, q store.Querier, f ir.Table) (ir.Table, error)
}

var _ Authorizer = (*security.Service)(nil)

// batchTx is the transaction one Execute call runs on. Implemented by
// store.Batch.
type batchTx interface {
	Querier() store.Querier
	Commit() error
	Rollback() error
}

// Orchestrator runs batches of procedure calls as single transactions.
//
// Each Execute call reserves its own connection and transaction; calls
// share no state and may run concurrently.
type Orchestrator struct {
	store    *store.Store
	begin    func(context.Context) (batchTx, error)
	runner   Runner
	auth     Authorizer
	tokens   TokenGenerator
	logger   *slog.Logger
	maxItems int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithTokenGenerator sets the batch token source. Defaults to UUIDv7Generator.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(o *Orchestrator) {
		o.tokens = g
	}
}

// WithMaxItems bounds the items one batch may execute, follow-ups
// included. Defaults to DefaultMaxItems; 0 disables the bound.
func WithMaxItems(n int) Option {
	return func(o *Orchestrator) {
		o.maxItems = n
	}
}

// New creates an Orchestrator.
func New(s *store.Store, runner Runner, auth Authorizer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    s,
		runner:   runner,
		auth:     auth,
		tokens:   UUIDv7Generator{},
		logger:   slog.Default(),
		maxItems: DefaultMaxItems,
	}
	o.begin = func(ctx context.Context) (batchTx, error) {
		return s.BeginBatch(ctx)
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs items in order inside one transaction and commits only if
// every item and every derived checker call succeeds.
//
// On failure nothing is committed and the returned error is a *BatchError
// carrying the submitted items, the results accumulated up to the failure
// and the cause.
func (o *Orchestrator) Execute(ctx context.Context, sc ir.SecurityContext, items []ir.TransactionItem) ([]ir.ItemResult, error) {
	token := o.tokens.Generate()
	logger := o.logger.With("batch", token, "user", sc.User)

	prepared, err := prepareBatch(items)
	if err != nil {
		logger.Warn("batch rejected", "error", err)
		return nil, &BatchError{Token: token, Items: items, Err: err}
	}

	logger.Info("batch started", "items", len(prepared))

	batch, err := o.begin(ctx)
	if err != nil {
		return nil, &BatchError{Token: token, Items: prepared, Err: err}
	}

	results, runErr := o.run(ctx, batch.Querier(), logger, token, sc, prepared)
	if runErr == nil {
		if err := batch.Commit(); err != nil {
			runErr = err
		}
	}

	if runErr != nil {
		logger.Error("batch failed", "executed", len(results), "error", runErr)
		if rbErr := batch.Rollback(); rbErr != nil {
			logger.Error("rollback failed, connection discarded", "error", rbErr)
			runErr = errors.Join(runErr, &RollbackFailure{Err: rbErr})
		} else {
			logger.Info("batch rolled back")
		}
		o.record(ctx, logger, token, sc, items, results, runErr)
		return nil, &BatchError{Token: token, Items: prepared, Results: results, Err: runErr}
	}

	logger.Info("batch committed", "results", len(results))
	o.record(ctx, logger, token, sc, items, results, nil)
	return results, nil
}

// run drains the work queue: primaries first, then the follow-ups derived
// from their results.
func (o *Orchestrator) run(ctx context.Context, q store.Querier, logger *slog.Logger, token string, sc ir.SecurityContext, items []ir.TransactionItem) ([]ir.ItemResult, error) {
	queue := newWorkQueue(len(items))
	for _, item := range items {
		queue.Enqueue(kindPrimary, item)
	}

	secured, err := o.auth.HasPrivilegeStores(ctx, q)
	if err != nil {
		return nil, err
	}

	quota := newQuota(o.maxItems)
	seq := seqAfter(items)
	var results []ir.ItemResult
	derived := false

	for {
		p, ok := queue.TryDequeue()
		if !ok {
			if derived || !secured {
				return results, nil
			}
			derived = true
			followUps, err := o.deriveFollowUps(ctx, q, items, results, seq)
			if err != nil {
				return results, fmt.Errorf("derive follow-up procedures: %w", err)
			}
			logger.Debug("follow-ups derived", "count", len(followUps))
			for _, f := range followUps {
				queue.Enqueue(kindFollowUp, f)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return results, err
		}
		if err := quota.Check(token); err != nil {
			return results, err
		}

		res, err := o.runItem(ctx, q, logger, sc, p, results, secured)
		if err != nil {
			return results, err
		}
		results = append(results, ir.ItemResult{
			ID:        p.item.ID,
			Seq:       p.item.Seq,
			Procedure: p.item.Table.Name,
			Result:    res,
		})
	}
}

// runItem resolves, authorizes and executes one item. Follow-ups are not
// authorized: they were derived from a privilege the caller already passed.
func (o *Orchestrator) runItem(ctx context.Context, q store.Querier, logger *slog.Logger, sc ir.SecurityContext, p pending, prior []ir.ItemResult, secured bool) (*ir.ProcedureResult, error) {
	table, err := resolve.Resolve(p.item, prior)
	if err != nil {
		return nil, fmt.Errorf("resolve item %q: %w", p.item.ID, err)
	}

	if p.kind == kindPrimary && secured {
		rows, err := o.auth.PrivilegePermissions(ctx, q, sc, table.Name)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, &PrivilegeError{Table: table.Name, User: sc.User}
		}
	}

	logger.Info("executing item",
		"id", p.item.ID,
		"seq", p.item.Seq,
		"procedure", table.Name,
		"kind", p.kind.String(),
	)

	res, err := o.runner.Execute(ctx, q, table)
	if err != nil {
		return nil, &ProcedureExecutionError{
			Item:      p.item.ID,
			Procedure: table.Name,
			FollowUp:  p.kind == kindFollowUp,
			Err:       err,
		}
	}
	return res, nil
}

// record writes the batch log entry. It runs after the transaction has
// ended, on a context that outlives cancellation, and only logs failures:
// the batch outcome is already final. The fingerprint covers the items as
// submitted, before Seq numbers are assigned.
func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, token string, sc ir.SecurityContext, items []ir.TransactionItem, results []ir.ItemResult, cause error) {
	entry := store.BatchLog{
		ID:      token,
		User:    sc.User,
		Items:   len(items),
		Results: len(results),
		Status:  store.StatusCommitted,
	}
	if cause != nil {
		entry.Status = store.StatusRolledBack
		entry.Error = cause.Error()
	}
	hash, err := ir.BatchHash(items)
	if err != nil {
		logger.Warn("batch hash failed", "error", err)
	}
	entry.Hash = hash

	if _, err := o.store.WriteBatchLog(context.WithoutCancel(ctx), entry); err != nil {
		logger.Warn("batch log write failed", "error", err)
	}
}
