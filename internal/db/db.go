// Package db provides optional PostgreSQL persistence of distribution runs
// and their per-student outcomes. A run works fine without it; the pipeline
// only warns when the database is unreachable.
package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// CreateRun records a new distribution run and returns its ID.
func (db *DB) CreateRun(ctx context.Context, server, quizLabel, rosterPath string) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO distribution_runs (server, quiz_label, roster_path, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING id`,
		server, quizLabel, rosterPath,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// CompleteRun marks a distribution run as finished with the given status.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE distribution_runs SET status = $1, completed_at = NOW() WHERE id = $2`,
		status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// OutcomeRecord is the persisted form of one student's outcome.
type OutcomeRecord struct {
	StudentNumber string
	RemoteFolder  string
	Uploaded      bool
	Shared        bool
	Link          string
	ShortLink     string
	ErrorText     string
}

// SaveOutcome stores the result of one student's reconciliation. Re-running
// the same student within a run updates the existing row.
func (db *DB) SaveOutcome(ctx context.Context, runID uuid.UUID, o OutcomeRecord) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO share_outcomes
		     (run_id, student_number, remote_folder, uploaded, shared, link, short_link, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (run_id, student_number) DO UPDATE SET
		     remote_folder = $3, uploaded = $4, shared = $5,
		     link = $6, short_link = $7, error_text = $8`,
		runID, o.StudentNumber, o.RemoteFolder, o.Uploaded, o.Shared, o.Link, o.ShortLink, o.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for student %s: %w", o.StudentNumber, err)
	}
	return nil
}
