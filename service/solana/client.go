package solana

import (
	"context"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mintdesk/mintdesk/service/metrics"
)

// Client provides read-only queries against the ledger: native balance and
// recent transaction history. It wraps the RPC client with domain-specific
// operations. Results are always fetched fresh; nothing is cached across calls.
type Client struct {
	rpc     RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a new reader client. If m is nil, no metrics are recorded.
func NewClient(rpcClient RPCClient, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:     rpcClient,
		logger:  logger,
		metrics: m,
	}
}

// FetchBalance returns the lamport balance of an address as a smallest-unit
// integer. Display conversion (divide by 1e9) is the caller's concern.
func (c *Client) FetchBalance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	start := time.Now()
	out, err := c.rpc.GetBalance(ctx, address, rpc.CommitmentConfirmed)
	c.record("GetBalance", err, time.Since(start))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to fetch balance",
			"address", address.String(),
			"error", err,
		)
		return 0, err
	}
	return out.Value, nil
}

// FetchHistory returns up to limit recent transactions for an address, newest
// first. Each entry requires a secondary transaction lookup; entries whose
// lookup returns nothing are dropped from the result, preserving the order of
// the remaining ones. Every call re-fetches from scratch.
func (c *Client) FetchHistory(ctx context.Context, address solana.PublicKey, limit int) ([]HistoryEntry, error) {
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit: &limit,
	}

	start := time.Now()
	signatures, err := c.rpc.GetSignaturesForAddress(ctx, address, opts)
	c.record("GetSignaturesForAddress", err, time.Since(start))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get signatures",
			"address", address.String(),
			"error", err,
		)
		return nil, err
	}

	c.logger.DebugContext(ctx, "fetched transaction signatures",
		"address", address.String(),
		"count", len(signatures),
	)

	maxVersion := uint64(0)
	entries := make([]HistoryEntry, 0, len(signatures))
	for _, sig := range signatures {
		txnOpts := &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &maxVersion,
		}
		txnStart := time.Now()
		result, err := c.rpc.GetTransaction(ctx, sig.Signature, txnOpts)
		c.record("GetTransaction", err, time.Since(txnStart))
		if err != nil || result == nil {
			// The detailed lookup came back empty: drop the entry rather
			// than surfacing a placeholder.
			c.logger.WarnContext(ctx, "transaction details unavailable, dropping entry",
				"signature", sig.Signature.String(),
				"error", err,
			)
			continue
		}

		entries = append(entries, parseHistoryEntry(sig, result))
	}

	c.logger.InfoContext(ctx, "fetched transaction history",
		"address", address.String(),
		"requested", len(signatures),
		"returned", len(entries),
	)

	return entries, nil
}

func (c *Client) record(method string, err error, d time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, d.Seconds())
}
