package token

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	solanasvc "github.com/mintdesk/mintdesk/service/solana"
)

// AccountState mirrors the SPL token account state byte.
type AccountState uint8

const (
	AccountStateUninitialized AccountState = 0
	AccountStateInitialized   AccountState = 1
	AccountStateFrozen        AccountState = 2
)

// Account is a decoded SPL token account: an (owner, mint) pair bound to a
// derived address with a smallest-unit balance. Balances are always read
// fresh from the ledger; this struct is never cached across operations.
type Account struct {
	Address solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
	State   AccountState
}

// tokenAccountLayout is the on-chain byte layout of an SPL token account.
type tokenAccountLayout struct {
	Mint                 solana.PublicKey
	Owner                solana.PublicKey
	Amount               uint64
	DelegateOption       uint32
	Delegate             solana.PublicKey
	State                uint8
	IsNativeOption       uint32
	IsNative             uint64
	DelegatedAmount      uint64
	CloseAuthorityOption uint32
	CloseAuthority       solana.PublicKey
}

// DecodeAccount decodes raw token account data into an Account.
func DecodeAccount(address solana.PublicKey, data []byte) (*Account, error) {
	layout := &tokenAccountLayout{}
	if err := bin.NewBinDecoder(data).Decode(layout); err != nil {
		return nil, fmt.Errorf("failed to decode token account %s: %w", address, err)
	}
	return &Account{
		Address: address,
		Mint:    layout.Mint,
		Owner:   layout.Owner,
		Amount:  layout.Amount,
		State:   AccountState(layout.State),
	}, nil
}

// FetchAccount reads and decodes a token account from the ledger.
// The caller should check existence first; a missing account is an error here.
func FetchAccount(ctx context.Context, client solanasvc.RPCClient, address solana.PublicKey) (*Account, error) {
	out, err := client.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token account %s: %w", address, err)
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("token account %s does not exist", address)
	}
	return DecodeAccount(address, out.Value.Data.GetBinary())
}
