package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Batch log statuses.
const (
	StatusCommitted  = "committed"
	StatusRolledBack = "rolled_back"
)

// BatchLog records the outcome of one executed batch.
type BatchLog struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	Hash    string `json:"batch_hash"`
	User    string `json:"user"`
	Items   int    `json:"items"`
	Results int    `json:"results"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// WriteBatchLog appends a batch log entry. Seq is assigned by the database
// and returned.
//
// Must not be called while a Batch holds the connection.
func (s *Store) WriteBatchLog(ctx context.Context, entry BatchLog) (int64, error) {
	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_log (id, batch_hash, username, items, results, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Hash, entry.User, entry.Items, entry.Results, entry.Status, errText)
	if err != nil {
		return 0, fmt.Errorf("write batch log %s: %w", entry.ID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("batch log seq: %w", err)
	}
	return seq, nil
}

// ReadBatchLogs returns the most recent entries in log order.
// limit <= 0 returns every entry.
func (s *Store) ReadBatchLogs(ctx context.Context, limit int) ([]BatchLog, error) {
	query := `
		SELECT seq, id, batch_hash, username, items, results, status, error
		FROM batch_log
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`
	var args []any
	if limit > 0 {
		query = `
			SELECT * FROM (
				SELECT seq, id, batch_hash, username, items, results, status, error
				FROM batch_log
				ORDER BY seq DESC
				LIMIT ?
			)
			ORDER BY seq ASC, id ASC COLLATE BINARY
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read batch log: %w", err)
	}
	defer rows.Close()

	return scanBatchLogs(rows)
}

// FindBatchLogsByHash returns every entry recorded for a batch fingerprint.
func (s *Store) FindBatchLogsByHash(ctx context.Context, hash string) ([]BatchLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, batch_hash, username, items, results, status, error
		FROM batch_log
		WHERE batch_hash = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("find batch log %s: %w", hash, err)
	}
	defer rows.Close()

	return scanBatchLogs(rows)
}

func scanBatchLogs(rows *sql.Rows) ([]BatchLog, error) {
	var out []BatchLog
	for rows.Next() {
		var (
			e       BatchLog
			errText sql.NullString
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Hash, &e.User, &e.Items, &e.Results, &e.Status, &errText); err != nil {
			return nil, fmt.Errorf("scan batch log: %w", err)
		}
		e.Error = errText.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batch log: %w", err)
	}
	return out, nil
}
