package solana

import (
	"time"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// HistoryEntry represents one recent transaction for an address.
// It is reconstructed from the ledger on every fetch and never cached.
type HistoryEntry struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Transfer  *TransferSummary // nil for non-transfer transactions
	Err       *string          // nil if the transaction succeeded
}

// TransferSummary is a best-effort parse of the first transfer instruction
// found in a transaction. All other instructions are summarized generically
// by leaving Transfer nil on the entry.
type TransferSummary struct {
	Amount      uint64
	Source      string
	Destination string
	TokenMint   *string // nil for native SOL transfers
}
