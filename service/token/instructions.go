package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	spltoken "github.com/gagliardetto/solana-go/programs/token"
)

// MaxDecimals is the largest mint precision the builders accept.
const MaxDecimals = 9

// CreateMintInstructions returns the two instructions that create a fungible
// token mint: allocate-and-fund the mint account at the rent-exempt balance,
// then initialize it with the given authority and no freeze authority.
// The order is mandatory; initialization targets an account that only exists
// after the allocation executes in the same transaction.
//
// The mint is a fresh single-use identity; its keypair must co-sign the
// transaction alongside the fee payer.
func CreateMintInstructions(
	payer solana.PublicKey,
	mint solana.PublicKey,
	authority solana.PublicKey,
	decimals uint8,
	rentLamports uint64,
) ([]solana.Instruction, error) {
	if payer.IsZero() || mint.IsZero() || authority.IsZero() {
		return nil, fmt.Errorf("payer, mint and authority must be set")
	}
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals %d exceeds maximum of %d", decimals, MaxDecimals)
	}

	createIx := system.NewCreateAccountInstruction(
		rentLamports,
		spltoken.MINT_SIZE,
		solana.TokenProgramID,
		payer,
		mint,
	).Build()

	initializeIx := spltoken.NewInitializeMint2InstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(authority).
		SetMintAccount(mint).
		Build()

	return []solana.Instruction{createIx, initializeIx}, nil
}

// MintToInstruction returns an instruction minting new supply into an existing
// token account. The destination must already exist; callers are responsible
// for resolving it first.
func MintToInstruction(
	mint solana.PublicKey,
	destination solana.PublicKey,
	authority solana.PublicKey,
	amount uint64,
) (solana.Instruction, error) {
	if mint.IsZero() || destination.IsZero() || authority.IsZero() {
		return nil, fmt.Errorf("mint, destination and authority must be set")
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	return spltoken.NewMintToInstruction(
		amount,
		mint,
		destination,
		authority,
		nil,
	).Build(), nil
}

// TransferInstruction returns an instruction moving tokens between two
// existing token accounts. Both accounts must already exist.
func TransferInstruction(
	source solana.PublicKey,
	destination solana.PublicKey,
	owner solana.PublicKey,
	amount uint64,
) (solana.Instruction, error) {
	if source.IsZero() || destination.IsZero() || owner.IsZero() {
		return nil, fmt.Errorf("source, destination and owner must be set")
	}
	if source.Equals(destination) {
		return nil, fmt.Errorf("source and destination must differ")
	}
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	return spltoken.NewTransferInstruction(
		amount,
		source,
		destination,
		owner,
		nil,
	).Build(), nil
}

// CreateAssociatedAccountInstruction returns an instruction creating the
// deterministic associated token account for (owner, mint), funded by payer.
func CreateAssociatedAccountInstruction(
	payer solana.PublicKey,
	owner solana.PublicKey,
	mint solana.PublicKey,
) (solana.Instruction, error) {
	if payer.IsZero() || owner.IsZero() || mint.IsZero() {
		return nil, fmt.Errorf("payer, owner and mint must be set")
	}

	return associatedtokenaccount.NewCreateInstruction(
		payer,
		owner,
		mint,
	).Build(), nil
}
