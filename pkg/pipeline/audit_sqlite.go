package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists audit events in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens (or creates) a database file and ensures schema.
// Use ":memory:" for a throwaway store.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_audit_events (
			run_id, kind, step_id, role_id, round, status, output_text, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.RunID,
		event.Kind,
		event.StepID,
		event.RoleID,
		event.Round,
		event.Status,
		event.Output,
		event.Error,
		sqlTime(event.StartedAt),
		sqlTime(event.FinishedAt),
	)
	return err
}

// List returns audit events matching the filter in recording order.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		clauses = append(clauses, clause)
		args = append(args, value)
	}
	add("run_id = ?", filter.RunID)
	add("step_id = ?", filter.StepID)
	add("kind = ?", filter.Kind)
	add("status = ?", filter.Status)

	query := `
		SELECT run_id, kind, step_id, role_id, round, status, output_text, error_text, started_at, finished_at
		FROM pipeline_audit_events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event    AuditEvent
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&event.RunID,
			&event.Kind,
			&event.StepID,
			&event.RoleID,
			&event.Round,
			&event.Status,
			&event.Output,
			&event.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			step_id TEXT NOT NULL DEFAULT '',
			role_id TEXT NOT NULL DEFAULT '',
			round INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			output_text TEXT NOT NULL DEFAULT '',
			error_text TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_pipeline_audit_run ON pipeline_audit_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_pipeline_audit_step ON pipeline_audit_events(step_id);
	`)
	return err
}

// sqlTime stores zero times as NULL.
func sqlTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC()
}
