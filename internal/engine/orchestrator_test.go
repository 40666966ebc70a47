package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/procedure"
	"github.com/roach88/tablegate/internal/security"
	"github.com/roach88/tablegate/internal/store"
	"github.com/roach88/tablegate/internal/testutil"
)

const ordersCatalog = `
procedure: xpcorInsertOrder: {
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

procedure: xpcorBroken: {
	exec: ["INSERT INTO missing_table VALUES (1)"]
}
`

func setupWith(t *testing.T, auth Authorizer, opts ...Option) (*store.Store, *Orchestrator) {
	t.Helper()
	s := testutil.OpenStore(t,
		"CREATE TABLE orders (KeyLong INTEGER PRIMARY KEY AUTOINCREMENT, Name TEXT NOT NULL)")
	cat := testutil.Catalog(t, ordersCatalog)

	opts = append([]Option{WithTokenGenerator(NewFixedGenerator("batch-1", "batch-2", "batch-3"))}, opts...)
	return s, New(s, procedure.NewExecutor(cat), auth, opts...)
}

func insertItem(id string, names ...string) ir.TransactionItem {
	t := ir.NewTable("xpcorInsertOrder",
		ir.NewOutputColumn("KeyLong", ir.TypeLong),
		ir.NewColumn("Name", ir.TypeString),
	)
	for _, n := range names {
		t.AddRow(ir.Null(ir.TypeLong), ir.String(n))
	}
	return ir.TransactionItem{ID: id, Table: t}
}

// checkItem references the KeyLong output of row 0 of item ref.
func checkItem(id, ref string) ir.TransactionItem {
	t := ir.NewTable("xpcorCheckOrder", ir.NewColumn("KeyLong", ir.TypeInteger))
	t.AddRow(ir.String("0-KeyLong").WithRule(ref))
	return ir.TransactionItem{ID: id, Table: t}
}

func countOrders(t *testing.T, s *store.Store) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM orders").Scan(&n))
	return n
}

func TestExecute_CommitsResolvedBatch(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))
	sc := ir.SecurityContext{User: "alice"}

	items := []ir.TransactionItem{
		insertItem("one", "a"),
		checkItem("two", "one"),
	}
	results, err := o.Execute(t.Context(), sc, items)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].ID)
	assert.Equal(t, int64(1), results[0].Seq)
	assert.Equal(t, "two", results[1].ID)
	assert.Equal(t, int64(2), results[1].Seq)
	assert.Equal(t, 1, countOrders(t, s))

	logs, err := s.ReadBatchLogs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "batch-1", logs[0].ID)
	assert.Equal(t, store.StatusCommitted, logs[0].Status)
	assert.Equal(t, "alice", logs[0].User)
	assert.Equal(t, 2, logs[0].Items)
	assert.Equal(t, 2, logs[0].Results)
	submitted, err := ir.BatchHash(items)
	require.NoError(t, err)
	assert.Equal(t, submitted, logs[0].Hash)
}

func TestExecute_FailureRollsBackWithPartialResults(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))
	items := []ir.TransactionItem{
		insertItem("one", "a"),
		{ID: "two", Table: ir.NewTable("xpcorBroken")},
	}

	results, err := o.Execute(t.Context(), ir.SecurityContext{User: "alice"}, items)
	require.Error(t, err)
	assert.Nil(t, results)

	be, ok := AsBatchError(err)
	require.True(t, ok)
	assert.Equal(t, "batch-1", be.Token)
	assert.Len(t, be.Items, 2)
	require.Len(t, be.Results, 1)
	assert.Equal(t, "one", be.Results[0].ID)

	var pe *ProcedureExecutionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "two", pe.Item)
	assert.Equal(t, "xpcorBroken", pe.Procedure)
	assert.False(t, pe.FollowUp)
	assert.False(t, IsRollbackFailure(err))

	assert.Zero(t, countOrders(t, s), "first item must be rolled back")

	logs, err := s.ReadBatchLogs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.StatusRolledBack, logs[0].Status)
	assert.Equal(t, 1, logs[0].Results)
	assert.Contains(t, logs[0].Error, `item "two"`)
}

// rollbackFailingBatch ends its transaction like store.Batch but reports
// the rollback as failed.
type rollbackFailingBatch struct {
	*store.Batch
	err error
}

func (b rollbackFailingBatch) Rollback() error {
	if err := b.Batch.Rollback(); err != nil {
		return err
	}
	return b.err
}

func TestExecute_RollbackFailureKeepsCause(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))
	rbErr := errors.New("disk I/O error")
	o.begin = func(ctx context.Context) (batchTx, error) {
		b, err := s.BeginBatch(ctx)
		if err != nil {
			return nil, err
		}
		return rollbackFailingBatch{Batch: b, err: rbErr}, nil
	}

	_, err := o.Execute(t.Context(), ir.SecurityContext{User: "alice"}, []ir.TransactionItem{
		insertItem("one", "a"),
		{ID: "two", Table: ir.NewTable("xpcorBroken")},
	})
	require.Error(t, err)

	be, ok := AsBatchError(err)
	require.True(t, ok)
	assert.Equal(t, "batch-1", be.Token)
	require.Len(t, be.Results, 1)

	assert.True(t, IsRollbackFailure(err))
	var rf *RollbackFailure
	require.ErrorAs(t, err, &rf)
	assert.ErrorIs(t, rf, rbErr)

	var pe *ProcedureExecutionError
	require.ErrorAs(t, err, &pe, "the original cause survives the rollback failure")
	assert.Equal(t, "two", pe.Item)
	assert.Equal(t, "xpcorBroken", pe.Procedure)

	logs, err := s.ReadBatchLogs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.StatusRolledBack, logs[0].Status)
	assert.Contains(t, logs[0].Error, `item "two"`)
	assert.Contains(t, logs[0].Error, "rollback failed: disk I/O error")
}

func TestExecute_UnresolvedReferenceRollsBack(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))

	_, err := o.Execute(t.Context(), ir.SecurityContext{}, []ir.TransactionItem{
		insertItem("one", "a"),
		checkItem("two", "nope"),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, `resolve item "two"`)
	assert.Zero(t, countOrders(t, s))
}

func TestExecute_InvalidBatchRunsNothing(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))

	_, err := o.Execute(t.Context(), ir.SecurityContext{}, []ir.TransactionItem{
		insertItem("one", "a"),
		insertItem("one", "b"),
	})
	require.Error(t, err)
	assert.True(t, IsInvalidBatch(err))
	assert.Zero(t, countOrders(t, s))

	logs, err := s.ReadBatchLogs(t.Context(), 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestExecute_AssertionVetoesBatch(t *testing.T) {
	s, o := setupWith(t, security.NewService(false))

	_, err := o.Execute(t.Context(), ir.SecurityContext{}, []ir.TransactionItem{
		insertItem("one", "forbidden"),
		checkItem("two", "one"),
	})
	require.Error(t, err)
	assert.True(t, procedure.IsAssertion(err))
	assert.Zero(t, countOrders(t, s))
}

func TestExecute_PrivilegeDenied(t *testing.T) {
	s, o := setupWith(t, security.NewService(true))
	require.NoError(t, security.Grant(t.Context(), s.DB(), "xpcorInsertOrder", "sales", false))

	_, err := o.Execute(t.Context(),
		ir.SecurityContext{User: "bob", Authorities: []string{"support"}},
		[]ir.TransactionItem{insertItem("one", "a")},
	)
	require.Error(t, err)
	assert.True(t, IsPrivilegeError(err))

	var pe *PrivilegeError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "xpcorInsertOrder", pe.Table)
	assert.Equal(t, "msg.PrivilegeError %xpcorInsertOrder", pe.Error())
	assert.Zero(t, countOrders(t, s))
}

func TestExecute_EmptyPrivilegeStoreDenies(t *testing.T) {
	s, o := setupWith(t, security.NewService(true))

	_, err := o.Execute(t.Context(),
		ir.SecurityContext{User: "mallory"},
		[]ir.TransactionItem{insertItem("one", "a")},
	)
	require.Error(t, err)
	assert.True(t, IsPrivilegeError(err))
	assert.Zero(t, countOrders(t, s))
}

func TestExecute_RunsCheckerFollowUps(t *testing.T) {
	s, o := setupWith(t, security.NewService(true))
	ctx := t.Context()
	_, err := security.FindOrCreatePrivilege(ctx, s.DB(), "xpcorInsertOrder", "xpcorCheckOrder")
	require.NoError(t, err)
	require.NoError(t, security.Grant(ctx, s.DB(), "xpcorInsertOrder", "sales", false))
	sc := ir.SecurityContext{User: "carol", Authorities: []string{"sales"}}

	results, err := o.Execute(ctx, sc, []ir.TransactionItem{insertItem("one", "a", "b")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "xpcorInsertOrderxpcorCheckOrder", results[1].ID)
	assert.Equal(t, int64(2), results[1].Seq)
	assert.Equal(t, "xpcorCheckOrder", results[1].Procedure)
	assert.Equal(t, []int{0, 0}, results[1].Result.ReturnCodes, "one checker call per inserted row")
	assert.Equal(t, 2, countOrders(t, s))

	_, err = o.Execute(ctx, sc, []ir.TransactionItem{insertItem("one", "forbidden")})
	require.Error(t, err)
	var pe *ProcedureExecutionError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.FollowUp)
	assert.Equal(t, "xpcorCheckOrder", pe.Procedure)
	assert.True(t, procedure.IsAssertion(err))
	assert.Equal(t, 2, countOrders(t, s), "vetoed batch leaves no rows")
}

func TestExecute_FollowUpsNeedMapping(t *testing.T) {
	auth := &fakeAuth{
		secured: true,
		allowed: map[string]bool{"xpcorInsertOrder": true},
		mapping: mappingTable(),
	}
	s, o := setupWith(t, auth)

	_, err := o.Execute(t.Context(), ir.SecurityContext{}, []ir.TransactionItem{insertItem("one", "a")})
	require.Error(t, err)
	assert.True(t, IsPrivilegeError(err))
	assert.ErrorContains(t, err, "derive follow-up procedures")
	assert.Zero(t, countOrders(t, s))
}

func TestExecute_ItemLimit(t *testing.T) {
	s, o := setupWith(t, security.NewService(false), WithMaxItems(1))

	_, err := o.Execute(t.Context(), ir.SecurityContext{}, []ir.TransactionItem{
		insertItem("one", "a"),
		insertItem("two", "b"),
	})
	require.Error(t, err)
	assert.True(t, IsItemLimit(err))
	assert.Zero(t, countOrders(t, s))
}
