package workflow

import (
	"errors"
	"fmt"
)

// Kind classifies a workflow failure. Validation failures are rejected
// locally before any network call; every network-layer error is converted to
// one of these kinds at the workflow boundary and never left unclassified.
type Kind int

const (
	// KindValidation covers malformed addresses and non-positive or
	// non-numeric amounts. No network call has been made.
	KindValidation Kind = iota

	// KindResolutionFailed covers transient ledger reads during
	// preparation: account lookups, account creation, rent queries.
	KindResolutionFailed

	// KindResolutionInconsistent is the definitive "account still absent
	// after a confirmed creation" condition, distinct from a transient
	// failure.
	KindResolutionInconsistent

	// KindSigningRejected means the external signer declined or errored.
	// Nothing has reached the network.
	KindSigningRejected

	// KindSubmissionFailed means the ledger rejected the raw transaction
	// outright, for example a stale blockhash or insufficient funds.
	KindSubmissionFailed

	// KindConfirmationFailed means the transaction landed but the ledger
	// reports failure. The ledger interaction is complete; resubmitting the
	// same bytes must never happen.
	KindConfirmationFailed

	// KindConfirmationTimedOut means the outcome is unknown within the
	// polling bound. The transaction may still confirm later off-path.
	KindConfirmationTimedOut

	// KindBusy means a workflow of the same operation kind is still
	// outstanding.
	KindBusy
)

// String returns the snake_case name of the kind, used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResolutionFailed:
		return "resolution_failed"
	case KindResolutionInconsistent:
		return "resolution_inconsistent"
	case KindSigningRejected:
		return "signing_rejected"
	case KindSubmissionFailed:
		return "submission_failed"
	case KindConfirmationFailed:
		return "confirmation_failed"
	case KindConfirmationTimedOut:
		return "confirmation_timed_out"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Message returns a human-readable description suitable for direct display.
func (k Kind) Message() string {
	switch k {
	case KindValidation:
		return "invalid input"
	case KindResolutionFailed:
		return "could not resolve a required account"
	case KindResolutionInconsistent:
		return "token account missing after creation"
	case KindSigningRejected:
		return "the wallet declined to sign the transaction"
	case KindSubmissionFailed:
		return "the ledger rejected the transaction"
	case KindConfirmationFailed:
		return "the transaction failed on the ledger"
	case KindConfirmationTimedOut:
		return "confirmation timed out; the transaction may still land"
	case KindBusy:
		return "a previous operation of this kind is still in progress"
	default:
		return "unknown error"
	}
}

// Error is a classified workflow failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Message())
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Message(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err as a classified workflow failure. If err is already a
// classified *Error, its kind is preserved so that, for example, a signing
// refusal inside an account-creation sub-workflow still surfaces as
// signing_rejected rather than being reclassified.
func newError(kind Kind, op string, err error) *Error {
	var werr *Error
	if errors.As(err, &werr) {
		return &Error{Kind: werr.Kind, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification of err, or ok=false for unclassified
// errors.
func KindOf(err error) (Kind, bool) {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
