package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	solanasvc "github.com/mintdesk/mintdesk/service/solana"
)

// DeriveAssociatedAddress derives the associated token account address for
// (owner, mint). It is a pure function of its inputs: no network call, and
// two derivations of the same pair always yield the same address, including
// across process restarts.
func DeriveAssociatedAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	if owner.IsZero() || mint.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("owner and mint must be set")
	}
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return ata, nil
}

// AccountExists performs a read-only existence check for an account address.
// Absence is not an error; it is a valid negative result the caller must
// branch on. Only transport problems are returned as errors.
func AccountExists(ctx context.Context, client solanasvc.RPCClient, address solana.PublicKey) (bool, error) {
	out, err := client.GetAccountInfo(ctx, address)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to query account %s: %w", address, err)
	}
	return out != nil && out.Value != nil, nil
}
