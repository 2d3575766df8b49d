package solana

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRPCClient implements RPCClient for testing.
// It's behavior-focused: we set what it should return, not verify call sequences.
type mockRPCClient struct {
	balance      uint64
	balanceErr   error
	signatures   []*rpc.TransactionSignature
	signaturesErr error
	transactions map[string]*rpc.GetTransactionResult
}

func (m *mockRPCClient) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRPCClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	return 0, errors.New("not implemented")
}

func (m *mockRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return nil, rpc.ErrNotFound
}

func (m *mockRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return &rpc.GetBalanceResult{Value: m.balance}, nil
}

func (m *mockRPCClient) SendEncodedTransaction(ctx context.Context, encodedTx string, opts rpc.TransactionOpts) (solana.Signature, error) {
	return solana.Signature{}, errors.New("not implemented")
}

func (m *mockRPCClient) GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRPCClient) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	if m.signaturesErr != nil {
		return nil, m.signaturesErr
	}
	return m.signatures, nil
}

func (m *mockRPCClient) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	result, ok := m.transactions[signature.String()]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return result, nil
}

func (m *mockRPCClient) RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error) {
	return solana.Signature{}, errors.New("not implemented")
}

func newTestClient(mock *mockRPCClient) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(mock, nil, logger)
}

func TestFetchBalance(t *testing.T) {
	client := newTestClient(&mockRPCClient{balance: 1_500_000_000})

	got, err := client.FetchBalance(context.Background(), testFrom)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), got)
}

func TestFetchBalance_Error(t *testing.T) {
	client := newTestClient(&mockRPCClient{balanceErr: errors.New("rpc unavailable")})

	_, err := client.FetchBalance(context.Background(), testFrom)
	assert.Error(t, err)
}

func TestFetchHistory_DropsMissingLookups(t *testing.T) {
	// Five recent signatures; the detailed lookup for the third returns
	// nothing. The result must have four entries in original order.
	sigs := []solana.Signature{
		solana.MustSignatureFromBase58("5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"),
		solana.MustSignatureFromBase58("2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"),
		solana.MustSignatureFromBase58("3LzUfBWvh7uN5sNTVPkbDGq5SNrPBKDYTJqFmH8nHq6Z9VGJ7iCxB2rLFZsKrQNuJfTnKQ5D5YqGrNqvnKQZXMQE"),
		solana.MustSignatureFromBase58("4pXrLEvzDbWMsLpWGvAarAb7QVSNn5YY6wkJ41E64Ciyi7rMGXQAk2RxyCFqzm9DS4cHepFkysHkwZ8Csjin76vf"),
		solana.MustSignatureFromBase58("67f2k9jWvA5C2g9raHhsjBnJhJNnyA6sqcZUPtcVLcjnLgpV8rT1cPLsMAAzjBsGiPsZqSA2tEC527mEb7rLx1rz"),
	}

	mock := &mockRPCClient{
		transactions: map[string]*rpc.GetTransactionResult{},
	}
	for i, sig := range sigs {
		mock.signatures = append(mock.signatures, sigMeta(sig, uint64(100-i), nil))
		if i == 2 {
			continue // third lookup comes back empty
		}
		mock.transactions[sig.String()] = makeTransactionResult(t, systemTransferTx(testFrom, testTo, uint64(i+1)))
	}

	client := newTestClient(mock)
	entries, err := client.FetchHistory(context.Background(), testFrom, 5)
	require.NoError(t, err)

	require.Len(t, entries, 4)
	assert.Equal(t, sigs[0].String(), entries[0].Signature)
	assert.Equal(t, sigs[1].String(), entries[1].Signature)
	assert.Equal(t, sigs[3].String(), entries[2].Signature)
	assert.Equal(t, sigs[4].String(), entries[3].Signature)
}

func TestFetchHistory_SignaturesError(t *testing.T) {
	client := newTestClient(&mockRPCClient{signaturesErr: errors.New("rpc unavailable")})

	_, err := client.FetchHistory(context.Background(), testFrom, 5)
	assert.Error(t, err)
}

func TestFetchHistory_Empty(t *testing.T) {
	client := newTestClient(&mockRPCClient{})

	entries, err := client.FetchHistory(context.Background(), testFrom, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
