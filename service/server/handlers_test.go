package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	solanasvc "github.com/mintdesk/mintdesk/service/solana"
	"github.com/mintdesk/mintdesk/service/workflow"
)

// stubWorkflows returns canned results or a canned error for every operation.
type stubWorkflows struct {
	err error

	createMintResult   *workflow.CreateMintResult
	mintResult         *workflow.MintResult
	transferResult     *workflow.TransferResult
	balanceResult      *workflow.BalanceResult
	tokenBalanceResult *workflow.TokenBalanceResult
	historyResult      []solanasvc.HistoryEntry
	airdropResult      *workflow.AirdropResult

	gotDecimals uint8
	gotAmount   string
	gotLimit    int
}

func (s *stubWorkflows) CreateMint(ctx context.Context, decimals uint8) (*workflow.CreateMintResult, error) {
	s.gotDecimals = decimals
	return s.createMintResult, s.err
}

func (s *stubWorkflows) MintTo(ctx context.Context, mint, amount string) (*workflow.MintResult, error) {
	s.gotAmount = amount
	return s.mintResult, s.err
}

func (s *stubWorkflows) Transfer(ctx context.Context, mint, recipient, amount string) (*workflow.TransferResult, error) {
	s.gotAmount = amount
	return s.transferResult, s.err
}

func (s *stubWorkflows) Balance(ctx context.Context, address string) (*workflow.BalanceResult, error) {
	return s.balanceResult, s.err
}

func (s *stubWorkflows) TokenBalance(ctx context.Context, mint, owner string) (*workflow.TokenBalanceResult, error) {
	return s.tokenBalanceResult, s.err
}

func (s *stubWorkflows) History(ctx context.Context, address string, limit int) ([]solanasvc.HistoryEntry, error) {
	s.gotLimit = limit
	return s.historyResult, s.err
}

func (s *stubWorkflows) Airdrop(ctx context.Context, address, sol string) (*workflow.AirdropResult, error) {
	return s.airdropResult, s.err
}

func newTestServer(stub *stubWorkflows) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(":0", stub, nil, nil, logger).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func workflowErr(kind workflow.Kind) error {
	return &workflow.Error{Kind: kind, Op: "test", Err: errors.New("boom")}
}

func TestHandleCreateMint(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	sig := solana.Signature{1}
	stub := &stubWorkflows{
		createMintResult: &workflow.CreateMintResult{
			Mint:      mint,
			Authority: solana.NewWallet().PublicKey(),
			Decimals:  6,
			Signature: sig,
			Slot:      42,
		},
	}
	h := newTestServer(stub)

	decimals := uint8(6)
	w := doJSON(t, h, "POST", "/api/v1/mints", createMintRequest{Decimals: &decimals})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, uint8(6), stub.gotDecimals)

	var resp createMintResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, mint.String(), resp.Mint)
	assert.Equal(t, sig.String(), resp.Signature)
}

func TestHandleCreateMint_DefaultDecimals(t *testing.T) {
	stub := &stubWorkflows{createMintResult: &workflow.CreateMintResult{}}
	h := newTestServer(stub)

	w := doJSON(t, h, "POST", "/api/v1/mints", map[string]any{})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, uint8(9), stub.gotDecimals)
}

func TestHandleMintTo(t *testing.T) {
	stub := &stubWorkflows{
		mintResult: &workflow.MintResult{
			Amount:         10_000_000,
			CreatedAccount: true,
			Signature:      solana.Signature{2},
		},
	}
	h := newTestServer(stub)

	mint := solana.NewWallet().PublicKey().String()
	w := doJSON(t, h, "POST", "/api/v1/mints/"+mint+"/mint", mintToRequest{Amount: "10"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", stub.gotAmount)

	var resp mintToResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(10_000_000), resp.Amount)
	assert.True(t, resp.CreatedAccount)
}

func TestHandleMintTo_MissingAmount(t *testing.T) {
	h := newTestServer(&stubWorkflows{})
	mint := solana.NewWallet().PublicKey().String()
	w := doJSON(t, h, "POST", "/api/v1/mints/"+mint+"/mint", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleTransfer_RequiredFields(t *testing.T) {
	h := newTestServer(&stubWorkflows{})
	w := doJSON(t, h, "POST", "/api/v1/transfers", transferRequest{Mint: "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorKindMapping(t *testing.T) {
	tests := []struct {
		kind workflow.Kind
		code int
	}{
		{workflow.KindValidation, http.StatusBadRequest},
		{workflow.KindBusy, http.StatusConflict},
		{workflow.KindSigningRejected, http.StatusUnprocessableEntity},
		{workflow.KindConfirmationTimedOut, http.StatusGatewayTimeout},
		{workflow.KindConfirmationFailed, http.StatusBadGateway},
		{workflow.KindSubmissionFailed, http.StatusBadGateway},
		{workflow.KindResolutionFailed, http.StatusBadGateway},
		{workflow.KindResolutionInconsistent, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			h := newTestServer(&stubWorkflows{err: workflowErr(tt.kind)})

			w := doJSON(t, h, "POST", "/api/v1/transfers", transferRequest{
				Mint:      "m",
				Recipient: "r",
				Amount:    "1",
			})
			require.Equal(t, tt.code, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.kind.String(), body["kind"])
		})
	}
}

func TestUnclassifiedErrorIs500(t *testing.T) {
	h := newTestServer(&stubWorkflows{err: errors.New("plain")})
	w := doJSON(t, h, "GET", "/api/v1/balance/someaddress", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleTokenBalance_MissingAccountIsOK(t *testing.T) {
	stub := &stubWorkflows{
		tokenBalanceResult: &workflow.TokenBalanceResult{
			Exists:   false,
			UIAmount: "0",
			Decimals: 6,
		},
	}
	h := newTestServer(stub)

	mint := solana.NewWallet().PublicKey().String()
	owner := solana.NewWallet().PublicKey().String()
	w := doJSON(t, h, "GET", "/api/v1/token-balance/"+mint+"/"+owner, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp tokenBalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Equal(t, "0", resp.UIAmount)
}

func TestHandleHistory(t *testing.T) {
	errMsg := "InstructionError"
	stub := &stubWorkflows{
		historyResult: []solanasvc.HistoryEntry{
			{Signature: "sig1", Slot: 10, Transfer: &solanasvc.TransferSummary{Amount: 5}},
			{Signature: "sig2", Slot: 9, Err: &errMsg},
		},
	}
	h := newTestServer(stub)

	addr := solana.NewWallet().PublicKey().String()
	w := doJSON(t, h, "GET", "/api/v1/history/"+addr+"?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, stub.gotLimit)

	var resp []historyEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "sig1", resp[0].Signature)
	require.NotNil(t, resp[0].Transfer)
	assert.Nil(t, resp[1].Transfer)
	require.NotNil(t, resp[1].Err)
}

func TestHandleHistory_BadLimit(t *testing.T) {
	h := newTestServer(&stubWorkflows{})
	addr := solana.NewWallet().PublicKey().String()

	for _, limit := range []string{"abc", "0", "-5", "5000"} {
		w := doJSON(t, h, "GET", "/api/v1/history/"+addr+"?limit="+limit, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(&stubWorkflows{})
	w := doJSON(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&stubWorkflows{})
	req := httptest.NewRequest("OPTIONS", "/api/v1/transfers", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
