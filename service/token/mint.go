package token

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"

	solanasvc "github.com/mintdesk/mintdesk/service/solana"
)

// FetchMint reads and decodes a mint account from the ledger. Used to learn a
// mint's decimal precision and authority; mints are never mutated locally.
func FetchMint(ctx context.Context, client solanasvc.RPCClient, mint solana.PublicKey) (*spltoken.Mint, error) {
	out, err := client.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mint %s: %w", mint, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("mint %s does not exist", mint)
	}

	m := spltoken.Mint{}
	if err := m.Decode(out.Value.Data.GetBinary()); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", mint, err)
	}
	return &m, nil
}
