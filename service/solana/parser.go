package solana

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Token program instruction discriminants we recognize as transfers.
const (
	systemTransferInstruction       = uint32(2)
	tokenTransferInstruction        = uint8(3)
	tokenTransferCheckedInstruction = uint8(12)
)

// parseHistoryEntry builds a HistoryEntry from signature metadata plus the
// full transaction lookup. Parsing the transfer is best-effort: the first
// instruction recognized as a transfer is surfaced, everything else is
// summarized generically by leaving Transfer nil.
func parseHistoryEntry(sig *rpc.TransactionSignature, result *rpc.GetTransactionResult) HistoryEntry {
	entry := HistoryEntry{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
	}

	if sig.BlockTime != nil {
		entry.BlockTime = sig.BlockTime.Time()
	} else {
		entry.BlockTime = time.Time{}
	}

	if sig.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", sig.Err)
		entry.Err = &errMsg
		return entry
	}

	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return entry
	}

	accountKeys := tx.Message.AccountKeys
	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[instruction.ProgramIDIndex]

		var summary *TransferSummary
		switch {
		case programID.Equals(solana.SystemProgramID):
			summary = parseSystemTransfer(instruction, accountKeys)
		case programID.Equals(solana.TokenProgramID):
			summary = parseTokenTransfer(instruction, accountKeys)
		}

		if summary != nil {
			entry.Transfer = summary
			break
		}
	}

	return entry
}

// parseSystemTransfer extracts a native SOL transfer summary from a System
// Program instruction, or nil if the instruction is not a transfer.
//
// System Transfer layout: [0..4] instruction type (u32 LE, 2 = Transfer),
// [4..12] lamports (u64 LE). Accounts: [from, to].
func parseSystemTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) *TransferSummary {
	if len(instruction.Data) < 12 {
		return nil
	}
	if binary.LittleEndian.Uint32(instruction.Data[0:4]) != systemTransferInstruction {
		return nil
	}
	if len(instruction.Accounts) < 2 {
		return nil
	}

	source, ok := accountAt(instruction, accountKeys, 0)
	if !ok {
		return nil
	}
	destination, ok := accountAt(instruction, accountKeys, 1)
	if !ok {
		return nil
	}

	return &TransferSummary{
		Amount:      binary.LittleEndian.Uint64(instruction.Data[4:12]),
		Source:      source.String(),
		Destination: destination.String(),
	}
}

// parseTokenTransfer extracts an SPL token transfer summary from a Token
// Program instruction, or nil if the instruction is not a transfer.
func parseTokenTransfer(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey) *TransferSummary {
	if len(instruction.Data) == 0 {
		return nil
	}

	switch instruction.Data[0] {
	case tokenTransferInstruction:
		// Transfer layout: [0] type (u8, 3), [1..9] amount (u64 LE).
		// Accounts: [source, destination, authority].
		if len(instruction.Data) < 9 || len(instruction.Accounts) < 2 {
			return nil
		}
		source, ok := accountAt(instruction, accountKeys, 0)
		if !ok {
			return nil
		}
		destination, ok := accountAt(instruction, accountKeys, 1)
		if !ok {
			return nil
		}
		return &TransferSummary{
			Amount:      binary.LittleEndian.Uint64(instruction.Data[1:9]),
			Source:      source.String(),
			Destination: destination.String(),
		}

	case tokenTransferCheckedInstruction:
		// TransferChecked layout: [0] type (u8, 12), [1..9] amount (u64 LE),
		// [9] decimals. Accounts: [source, mint, destination, authority].
		if len(instruction.Data) < 10 || len(instruction.Accounts) < 4 {
			return nil
		}
		source, ok := accountAt(instruction, accountKeys, 0)
		if !ok {
			return nil
		}
		mint, ok := accountAt(instruction, accountKeys, 1)
		if !ok {
			return nil
		}
		destination, ok := accountAt(instruction, accountKeys, 2)
		if !ok {
			return nil
		}
		mintStr := mint.String()
		return &TransferSummary{
			Amount:      binary.LittleEndian.Uint64(instruction.Data[1:9]),
			Source:      source.String(),
			Destination: destination.String(),
			TokenMint:   &mintStr,
		}

	default:
		return nil
	}
}

// accountAt resolves the i-th account reference of an instruction against the
// transaction's account key table.
func accountAt(instruction solana.CompiledInstruction, accountKeys []solana.PublicKey, i int) (solana.PublicKey, bool) {
	if i >= len(instruction.Accounts) {
		return solana.PublicKey{}, false
	}
	idx := instruction.Accounts[i]
	if int(idx) >= len(accountKeys) {
		return solana.PublicKey{}, false
	}
	return accountKeys[idx], true
}
