// Package history keeps a local SQLite log of report runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MacJediWizard/statsbot/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DefaultListLimit is the number of runs ListRuns returns when limit <= 0.
const DefaultListLimit = 50

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store records report runs in SQLite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger.With().Str("component", "history_store").Logger(),
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	store.logger.Info().Str("path", path).Msg("history database initialized")

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS report_runs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_report_runs_started_at ON report_runs(started_at);
		CREATE INDEX IF NOT EXISTS idx_report_runs_kind ON report_runs(kind);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a finished report run.
func (s *Store) RecordRun(ctx context.Context, run *models.ReportRun) error {
	query := `
		INSERT INTO report_runs (id, kind, triggered_by, status, error_kind, error_message, duration_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(),
		string(run.Kind),
		string(run.Trigger),
		string(run.Status),
		nullString(run.ErrorKind),
		nullString(run.ErrorMessage),
		run.Duration.Milliseconds(),
		run.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}

	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*models.ReportRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, triggered_by, status, error_kind, error_message, duration_ms, started_at
		FROM report_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query report runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ReportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate report runs: %w", err)
	}

	return runs, nil
}

// PruneOlderThan removes runs that started more than olderThan ago.
func (s *Store) PruneOlderThan(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(timeLayout)

	result, err := s.db.ExecContext(ctx, `DELETE FROM report_runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune report runs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("pruned report history")
	}
	return int(n), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRun(rows *sql.Rows) (*models.ReportRun, error) {
	var (
		idStr, kind, trigger, status string
		errorKind, errorMessage      sql.NullString
		durationMS                   int64
		startedAtStr                 string
	)
	if err := rows.Scan(&idStr, &kind, &trigger, &status, &errorKind, &errorMessage, &durationMS, &startedAtStr); err != nil {
		return nil, fmt.Errorf("scan report run: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	startedAt, err := time.Parse(timeLayout, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}

	return &models.ReportRun{
		ID:           id,
		Kind:         models.ReportKind(kind),
		Trigger:      models.Trigger(trigger),
		Status:       models.RunStatus(status),
		ErrorKind:    errorKind.String,
		ErrorMessage: errorMessage.String,
		Duration:     time.Duration(durationMS) * time.Millisecond,
		StartedAt:    startedAt,
	}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
