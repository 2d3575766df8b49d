package workflow

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want rpc.CommitmentType
		ok   bool
	}{
		{"processed", rpc.CommitmentProcessed, true},
		{"confirmed", rpc.CommitmentConfirmed, true},
		{"finalized", rpc.CommitmentFinalized, true},
		{"final", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.ok {
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		} else {
			assert.Error(t, err)
		}
	}
}

func newTestEngine(mock *mockRPC, level rpc.CommitmentType, timeout time.Duration) *Engine {
	return NewEngine(mock, level, timeout, time.Millisecond, nil, testLogger())
}

func signedTestTransaction(t *testing.T) *solana.Transaction {
	t.Helper()
	payer := solana.NewWallet()
	ix := system.NewTransferInstruction(
		1000,
		payer.PublicKey(),
		solana.NewWallet().PublicKey(),
	).Build()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		solana.Hash(solana.NewWallet().PublicKey()),
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if payer.PublicKey().Equals(key) {
			k := payer.PrivateKey
			return &k
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func TestSubmit_SendsSerializedTransaction(t *testing.T) {
	mock := newMockRPC()
	engine := newTestEngine(mock, rpc.CommitmentConfirmed, time.Second)

	tx := signedTestTransaction(t)
	sig, err := engine.Submit(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())

	require.Len(t, mock.submitted, 1)
	want, err := tx.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(want), mock.submitted[0])
}

func TestConfirm_ReachesTargetAfterPending(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		if poll < 3 {
			return &rpc.SignatureStatusesResult{
				Slot:               42,
				ConfirmationStatus: rpc.ConfirmationStatusProcessed,
			}
		}
		return confirmedStatus()
	}
	engine := newTestEngine(mock, rpc.CommitmentConfirmed, time.Second)

	res, err := engine.Confirm(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, uint64(42), res.Slot)
	assert.Equal(t, 3, res.Polls)
}

func TestConfirm_StrongerStatusSatisfiesWeakerTarget(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		return &rpc.SignatureStatusesResult{
			Slot:               42,
			ConfirmationStatus: rpc.ConfirmationStatusFinalized,
		}
	}
	engine := newTestEngine(mock, rpc.CommitmentProcessed, time.Second)

	res, err := engine.Confirm(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
}

func TestConfirm_WeakerStatusKeepsPolling(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		return &rpc.SignatureStatusesResult{
			Slot:               42,
			ConfirmationStatus: rpc.ConfirmationStatusConfirmed,
		}
	}
	engine := newTestEngine(mock, rpc.CommitmentFinalized, 20*time.Millisecond)

	res, err := engine.Confirm(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Greater(t, res.Polls, 1)
}

func TestConfirm_LedgerError(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		return &rpc.SignatureStatusesResult{
			Slot: 42,
			Err: map[string]interface{}{
				"InstructionError": []interface{}{
					float64(1),
					map[string]interface{}{"Custom": float64(3)},
				},
			},
		}
	}
	engine := newTestEngine(mock, rpc.CommitmentConfirmed, time.Second)

	res, err := engine.Confirm(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Contains(t, res.Reason, "instruction 1 failed")
}

func TestConfirm_UnknownSignatureTimesOut(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		return nil
	}
	engine := newTestEngine(mock, rpc.CommitmentConfirmed, 15*time.Millisecond)

	res, err := engine.Confirm(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
}

func TestConfirm_ContextCancellation(t *testing.T) {
	mock := newMockRPC()
	mock.statusFn = func(poll int) *rpc.SignatureStatusesResult {
		return nil
	}
	engine := newTestEngine(mock, rpc.CommitmentConfirmed, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Confirm(ctx, solana.Signature{1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t,
		`instruction 0 failed: {"Custom":1}`,
		failureReason(map[string]interface{}{
			"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(1)}},
		}))

	assert.Equal(t, `"AccountNotFound"`, failureReason("AccountNotFound"))
}
