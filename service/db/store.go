package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mintdesk/mintdesk/service/metrics"
	"github.com/mintdesk/mintdesk/service/workflow"
)

// Store is the submission audit log. Every transaction this service broadcasts
// gets one row, updated once with its terminal outcome. It records our own
// submissions only; ledger state is always read from the RPC node, never from
// here.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// NewPool connects a pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	signature    TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	payer        TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL,
	outcome      TEXT,
	reason       TEXT
);
CREATE INDEX IF NOT EXISTS submissions_submitted_at_idx
	ON submissions (submitted_at DESC);
`

// EnsureSchema creates the submissions table when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordSubmission writes the row for a newly broadcast transaction.
func (s *Store) RecordSubmission(ctx context.Context, rec *workflow.SubmissionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (signature, kind, payer, submitted_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (signature) DO NOTHING`,
		rec.Signature, rec.Kind, rec.Payer, rec.SubmittedAt,
	)
	s.metrics.RecordDBOperation("record_submission", dbStatus(err))
	if err != nil {
		return fmt.Errorf("failed to record submission %s: %w", rec.Signature, err)
	}
	return nil
}

// UpdateOutcome sets the terminal outcome for a submitted transaction.
func (s *Store) UpdateOutcome(ctx context.Context, signature, outcome, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET outcome = $2, reason = NULLIF($3, '')
		 WHERE signature = $1`,
		signature, outcome, reason,
	)
	s.metrics.RecordDBOperation("update_outcome", dbStatus(err))
	if err != nil {
		return fmt.Errorf("failed to update outcome for %s: %w", signature, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no submission recorded for %s", signature)
	}
	return nil
}

// Submission is one audit row.
type Submission struct {
	Signature   string
	Kind        string
	Payer       string
	SubmittedAt time.Time
	Outcome     *string
	Reason      *string
}

// ListRecent returns the newest submissions, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT signature, kind, payer, submitted_at, outcome, reason
		 FROM submissions ORDER BY submitted_at DESC LIMIT $1`,
		limit,
	)
	s.metrics.RecordDBOperation("list_recent", dbStatus(err))
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Submission])
	if err != nil {
		return nil, fmt.Errorf("failed to scan submissions: %w", err)
	}
	return subs, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

func dbStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
