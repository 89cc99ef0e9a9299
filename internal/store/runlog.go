package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RunLogEntry is one row of the etl_logs audit table
type RunLogEntry struct {
	ID        int64
	RunID     string
	Table     string
	Status    string
	RowCount  int64
	Message   string
	ElapsedMs int64
	CreatedAt time.Time
}

// InsertRunLog appends an audit row; created_at is assigned by the database
func (s *Store) InsertRunLog(ctx context.Context, e *RunLogEntry) error {
	_, err := s.exec(ctx, `
		INSERT INTO etl_logs (run_id, table_name, status, row_count, message, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nullString(e.RunID), e.Table, e.Status, e.RowCount, nullString(e.Message), e.ElapsedMs)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListRunLogs returns the newest audit rows first. An empty runID lists all runs.
func (s *Store) ListRunLogs(ctx context.Context, runID string, limit int) ([]*RunLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT id, COALESCE(run_id, ''), table_name, status, row_count,
		       COALESCE(message, ''), COALESCE(elapsed_ms, 0), created_at
		FROM etl_logs
	`
	args := []any{}
	if runID != "" {
		q += " WHERE run_id = ?"
		args = append(args, runID)
	}
	q += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*RunLogEntry
	for rows.Next() {
		var e RunLogEntry
		var created any
		err := rows.Scan(&e.ID, &e.RunID, &e.Table, &e.Status, &e.RowCount, &e.Message, &e.ElapsedMs, &created)
		if err != nil {
			return nil, err
		}
		if e.CreatedAt, _, err = parseTime(created); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// RunSummary condenses the pipeline-wide entries of one run
type RunSummary struct {
	RunID      string
	Status     string
	Rows       int64
	Message    string
	FinishedAt time.Time
	ElapsedMs  int64
}

// RecentRuns returns the final pipeline entry of the newest runs
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*RunSummary, error) {
	rows, err := s.query(ctx, `
		SELECT l.run_id, l.status, l.row_count, COALESCE(l.message, ''), COALESCE(l.elapsed_ms, 0), l.created_at
		FROM etl_logs l
		WHERE l.table_name = 'pipeline'
		  AND l.status <> 'START'
		  AND l.run_id IS NOT NULL
		ORDER BY l.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		var r RunSummary
		var created any
		if err := rows.Scan(&r.RunID, &r.Status, &r.Rows, &r.Message, &r.ElapsedMs, &created); err != nil {
			return nil, err
		}
		if r.FinishedAt, _, err = parseTime(created); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
