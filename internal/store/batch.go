package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
)

// Batch is one transaction on a connection reserved for it.
// A Batch is not safe for concurrent use.
type Batch struct {
	conn *sql.Conn
	tx   *sql.Tx
	done bool
}

// BeginBatch reserves a connection and opens a transaction on it.
// The caller must end the batch with Commit or Rollback.
func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Batch{conn: conn, tx: tx}, nil
}

// Querier returns the transaction every statement of the batch runs on.
func (b *Batch) Querier() Querier {
	return b.tx
}

// Commit commits the transaction and returns the connection to the pool.
// On failure the connection is kept so the caller can still Rollback.
// Once the commit succeeded the batch is durable: a failure to release
// the connection is only logged.
func (b *Batch) Commit() error {
	if b.done {
		return errors.New("batch already finished")
	}
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	b.done = true
	if err := b.conn.Close(); err != nil {
		slog.Warn("release connection after commit", "error", err)
	}
	return nil
}

// Rollback aborts the transaction and returns the connection to the pool.
//
// A transaction that database/sql already ended, for example because the
// batch context was cancelled, counts as rolled back. If the rollback
// fails otherwise the connection is discarded rather than returned: its
// transaction state is unknown. The rollback error is still returned.
func (b *Batch) Rollback() error {
	if b.done {
		return nil
	}
	b.done = true
	if err := b.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		b.discard()
		return fmt.Errorf("rollback: %w", err)
	}
	return b.conn.Close()
}

// discard closes the underlying driver connection so the pool drops it.
func (b *Batch) discard() {
	_ = b.conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = b.conn.Close()
}
