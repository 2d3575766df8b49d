package solana

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// maxUint64 as a decimal, for overflow checks on base-unit conversion.
var maxUint64 = decimal.RequireFromString("18446744073709551615")

// ToBaseUnits converts a human-entered decimal amount string into the mint's
// smallest unit using fixed-point scaling. It rejects non-numeric input,
// non-positive amounts, amounts with more fractional digits than the mint
// supports, and amounts that overflow uint64. It never clamps or rounds.
func ToBaseUnits(amount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}

	if d.Sign() <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %q", amount)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}

	if scaled.GreaterThan(maxUint64) {
		return 0, fmt.Errorf("amount %q overflows the smallest-unit range", amount)
	}

	return scaled.BigInt().Uint64(), nil
}

// FromBaseUnits converts a smallest-unit integer back to a decimal string.
// It is the exact inverse of ToBaseUnits for all representable values.
func FromBaseUnits(units uint64, decimals uint8) string {
	return decimal.NewFromUint64(units).Shift(-int32(decimals)).String()
}

// LamportsToSOL converts a lamport balance to a display SOL string.
// Conversion to display units happens only at the presentation boundary.
func LamportsToSOL(lamports uint64) string {
	return FromBaseUnits(lamports, 9)
}
