package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mintdesk/mintdesk/service/metrics"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
)

// Assembler builds unsigned transactions around a recent blockhash.
// A fresh blockhash is fetched per assembly; blockhashes are never cached
// because a stale one makes the ledger reject the transaction outright.
type Assembler struct {
	rpc     solanasvc.RPCClient
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAssembler creates an assembler backed by the given RPC client.
func NewAssembler(rpcClient solanasvc.RPCClient, m *metrics.Metrics, logger *slog.Logger) *Assembler {
	return &Assembler{
		rpc:     rpcClient,
		logger:  logger,
		metrics: m,
	}
}

// Assemble builds an unsigned transaction from the given instructions with
// feePayer as the fee payer. The instruction order is preserved exactly as
// given; execution order on the ledger follows it.
func (a *Assembler) Assemble(
	ctx context.Context,
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("at least one instruction is required")
	}
	if feePayer.IsZero() {
		return nil, fmt.Errorf("fee payer must be set")
	}

	start := time.Now()
	recent, err := a.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	a.metrics.RecordRPCCall("getLatestBlockhash", statusOf(err), time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}

	a.logger.DebugContext(ctx, "assembled transaction",
		"instructions", len(instructions),
		"fee_payer", feePayer.String(),
		"blockhash", recent.Value.Blockhash.String())

	return tx, nil
}

// PartialSign applies the given local keypairs to the transaction, leaving the
// remaining signature slots (the wallet's) empty. Locally held keys, such as a
// freshly generated mint keypair, must sign before the transaction is handed
// to the external signer; the signer only appends its own signature.
func PartialSign(tx *solana.Transaction, keys ...solana.PrivateKey) error {
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(key) {
				return &keys[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to partially sign transaction: %w", err)
	}
	return nil
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
