package workflow

import (
	"context"
	"time"
)

// SubmissionRecord is the audit row written for every transaction this
// service submits. It records our own submissions only; it is not a cache of
// ledger state, which always comes from the RPC node.
type SubmissionRecord struct {
	Signature   string
	Kind        string
	Payer       string
	SubmittedAt time.Time
}

// SubmissionStore persists the submission audit log. Implementations must be
// safe for concurrent use. A nil store disables auditing.
type SubmissionStore interface {
	// RecordSubmission writes a row for a newly submitted transaction.
	RecordSubmission(ctx context.Context, rec *SubmissionRecord) error

	// UpdateOutcome sets the terminal outcome for a submitted transaction.
	UpdateOutcome(ctx context.Context, signature, outcome, reason string) error
}
