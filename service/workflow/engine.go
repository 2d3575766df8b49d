package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/tidwall/gjson"

	"github.com/mintdesk/mintdesk/service/metrics"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
)

// Outcome is the terminal state of a confirmation watch.
type Outcome int

const (
	// OutcomeConfirmed means the transaction reached the target level with
	// no ledger error.
	OutcomeConfirmed Outcome = iota

	// OutcomeFailed means the transaction landed but the ledger reports an
	// execution error. Resubmitting the same bytes must never happen.
	OutcomeFailed

	// OutcomeTimedOut means the target level was not reached within the
	// polling bound. The transaction may still confirm later.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ConfirmationResult reports how a confirmation watch ended.
type ConfirmationResult struct {
	Outcome Outcome

	// Slot is the slot the transaction landed in, when known.
	Slot uint64

	// Reason describes the ledger error for OutcomeFailed.
	Reason string

	// Polls is the number of status queries made.
	Polls int
}

// ParseLevel maps a configuration confirmation level to its RPC commitment.
func ParseLevel(level string) (rpc.CommitmentType, error) {
	switch level {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown confirmation level %q", level)
	}
}

// levelRank orders confirmation statuses so a stronger status satisfies a
// weaker target.
func levelRank(level rpc.ConfirmationStatusType) int {
	switch level {
	case rpc.ConfirmationStatusProcessed:
		return 1
	case rpc.ConfirmationStatusConfirmed:
		return 2
	case rpc.ConfirmationStatusFinalized:
		return 3
	default:
		return 0
	}
}

func commitmentRank(level rpc.CommitmentType) int {
	switch level {
	case rpc.CommitmentProcessed:
		return 1
	case rpc.CommitmentConfirmed:
		return 2
	case rpc.CommitmentFinalized:
		return 3
	default:
		return 2
	}
}

// Engine submits signed transactions and watches them to a terminal outcome.
// Submission happens exactly once per transaction; confirmation is a bounded
// poll of signature statuses.
type Engine struct {
	rpc          solanasvc.RPCClient
	logger       *slog.Logger
	metrics      *metrics.Metrics
	level        rpc.CommitmentType
	timeout      time.Duration
	pollInterval time.Duration
}

// NewEngine creates an engine confirming to the given level with the given
// polling bound.
func NewEngine(
	rpcClient solanasvc.RPCClient,
	level rpc.CommitmentType,
	timeout time.Duration,
	pollInterval time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		rpc:          rpcClient,
		logger:       logger,
		metrics:      m,
		level:        level,
		timeout:      timeout,
		pollInterval: pollInterval,
	}
}

// Submit serializes the fully signed transaction and sends it to the ledger.
// Preflight simulation stays enabled so obviously invalid transactions are
// rejected before consuming a fee.
func (e *Engine) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)

	start := time.Now()
	sig, err := e.rpc.SendEncodedTransaction(ctx, encoded, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: e.level,
	})
	e.metrics.RecordRPCCall("sendTransaction", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to submit transaction: %w", err)
	}

	e.logger.InfoContext(ctx, "submitted transaction", "signature", sig.String())
	return sig, nil
}

// Confirm polls the signature status until the transaction reaches the target
// level, fails on the ledger, or the timeout elapses. Transient status
// lookup errors are tolerated and polling continues; only the deadline or a
// definitive status ends the watch.
func (e *Engine) Confirm(ctx context.Context, sig solana.Signature) (*ConfirmationResult, error) {
	deadline := time.NewTimer(e.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	target := commitmentRank(e.level)
	polls := 0

	for {
		polls++
		start := time.Now()
		out, err := e.rpc.GetSignatureStatuses(ctx, true, sig)
		e.metrics.RecordRPCCall("getSignatureStatuses", statusOf(err), time.Since(start).Seconds())
		if err != nil {
			e.logger.DebugContext(ctx, "status poll failed, retrying",
				"signature", sig.String(), "error", err)
		} else if result := e.inspect(ctx, sig, out, target, polls); result != nil {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			e.logger.InfoContext(ctx, "confirmation timed out",
				"signature", sig.String(), "polls", polls, "timeout", e.timeout)
			e.metrics.RecordConfirmation(string(e.level), OutcomeTimedOut.String(), polls)
			return &ConfirmationResult{Outcome: OutcomeTimedOut, Polls: polls}, nil
		case <-ticker.C:
		}
	}
}

// inspect examines one status response and returns a terminal result, or nil
// to keep polling.
func (e *Engine) inspect(
	ctx context.Context,
	sig solana.Signature,
	out *rpc.GetSignatureStatusesResult,
	target int,
	polls int,
) *ConfirmationResult {
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return nil
	}
	status := out.Value[0]

	if status.Err != nil {
		reason := failureReason(status.Err)
		e.logger.InfoContext(ctx, "transaction failed on ledger",
			"signature", sig.String(), "reason", reason)
		e.metrics.RecordConfirmation(string(e.level), OutcomeFailed.String(), polls)
		return &ConfirmationResult{
			Outcome: OutcomeFailed,
			Slot:    status.Slot,
			Reason:  reason,
			Polls:   polls,
		}
	}

	if levelRank(status.ConfirmationStatus) >= target {
		e.logger.InfoContext(ctx, "transaction confirmed",
			"signature", sig.String(),
			"slot", status.Slot,
			"level", string(status.ConfirmationStatus),
			"polls", polls)
		e.metrics.RecordConfirmation(string(e.level), OutcomeConfirmed.String(), polls)
		return &ConfirmationResult{
			Outcome: OutcomeConfirmed,
			Slot:    status.Slot,
			Polls:   polls,
		}
	}

	return nil
}

// failureReason renders the untyped transaction error reported by the RPC
// node into a short human-readable string. Instruction errors, the common
// case, are called out with their instruction index.
func failureReason(txErr interface{}) string {
	raw, err := json.Marshal(txErr)
	if err != nil {
		return fmt.Sprintf("%v", txErr)
	}
	if ie := gjson.GetBytes(raw, "InstructionError"); ie.Exists() {
		parts := ie.Array()
		if len(parts) == 2 {
			return fmt.Sprintf("instruction %d failed: %s", parts[0].Int(), parts[1].Raw)
		}
		return fmt.Sprintf("instruction error: %s", ie.Raw)
	}
	return string(raw)
}
