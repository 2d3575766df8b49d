package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mintdesk/mintdesk/service/db"
	solanasvc "github.com/mintdesk/mintdesk/service/solana"
	"github.com/mintdesk/mintdesk/service/token"
	"github.com/mintdesk/mintdesk/service/workflow"
)

const maxRequestBodySize = 1 << 20 // 1MB

type createMintRequest struct {
	Decimals *uint8 `json:"decimals,omitempty"`
}

type createMintResponse struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// handleCreateMint returns a handler that creates a new fungible token mint.
// POST /api/v1/mints
func handleCreateMint(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createMintRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		decimals := uint8(token.MaxDecimals)
		if req.Decimals != nil {
			decimals = *req.Decimals
		}

		result, err := workflows.CreateMint(r.Context(), decimals)
		if err != nil {
			writeWorkflowError(w, logger, "create mint failed", err)
			return
		}

		writeJSON(w, createMintResponse{
			Mint:      result.Mint.String(),
			Authority: result.Authority.String(),
			Decimals:  result.Decimals,
			Signature: result.Signature.String(),
			Slot:      result.Slot,
		}, http.StatusCreated)
	})
}

type mintToRequest struct {
	Amount string `json:"amount"`
}

type mintToResponse struct {
	Mint           string `json:"mint"`
	Destination    string `json:"destination"`
	Amount         uint64 `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	Signature      string `json:"signature"`
	Slot           uint64 `json:"slot"`
}

// handleMintTo returns a handler that mints supply into the service wallet's
// token account.
// POST /api/v1/mints/{mint}/mint
func handleMintTo(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mint := r.PathValue("mint")

		var req mintToRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Amount == "" {
			writeError(w, "amount is required", http.StatusBadRequest)
			return
		}

		result, err := workflows.MintTo(r.Context(), mint, req.Amount)
		if err != nil {
			writeWorkflowError(w, logger, "mint failed", err)
			return
		}

		writeJSON(w, mintToResponse{
			Mint:           result.Mint.String(),
			Destination:    result.Destination.String(),
			Amount:         result.Amount,
			Decimals:       result.Decimals,
			CreatedAccount: result.CreatedAccount,
			Signature:      result.Signature.String(),
			Slot:           result.Slot,
		}, http.StatusOK)
	})
}

type transferRequest struct {
	Mint      string `json:"mint"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type transferResponse struct {
	Mint           string `json:"mint"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Amount         uint64 `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	Signature      string `json:"signature"`
	Slot           uint64 `json:"slot"`
}

// handleTransfer returns a handler that transfers tokens to a recipient.
// POST /api/v1/transfers
func handleTransfer(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Mint == "" || req.Recipient == "" || req.Amount == "" {
			writeError(w, "mint, recipient and amount are required", http.StatusBadRequest)
			return
		}

		result, err := workflows.Transfer(r.Context(), req.Mint, req.Recipient, req.Amount)
		if err != nil {
			writeWorkflowError(w, logger, "transfer failed", err)
			return
		}

		writeJSON(w, transferResponse{
			Mint:           result.Mint.String(),
			Source:         result.Source.String(),
			Destination:    result.Destination.String(),
			Amount:         result.Amount,
			Decimals:       result.Decimals,
			CreatedAccount: result.CreatedAccount,
			Signature:      result.Signature.String(),
			Slot:           result.Slot,
		}, http.StatusOK)
	})
}

type balanceResponse struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

// handleBalance returns a handler that reads a wallet's native balance.
// GET /api/v1/balance/{address}
func handleBalance(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := workflows.Balance(r.Context(), r.PathValue("address"))
		if err != nil {
			writeWorkflowError(w, logger, "balance lookup failed", err)
			return
		}
		writeJSON(w, balanceResponse{
			Address:  result.Address.String(),
			Lamports: result.Lamports,
			SOL:      result.SOL,
		}, http.StatusOK)
	})
}

type tokenBalanceResponse struct {
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
	Account  string `json:"account"`
	Exists   bool   `json:"exists"`
	Amount   uint64 `json:"amount"`
	UIAmount string `json:"ui_amount"`
	Decimals uint8  `json:"decimals"`
}

// handleTokenBalance returns a handler that reads an owner's balance for a
// mint. A missing token account is a zero balance, not a 404.
// GET /api/v1/token-balance/{mint}/{owner}
func handleTokenBalance(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := workflows.TokenBalance(r.Context(), r.PathValue("mint"), r.PathValue("owner"))
		if err != nil {
			writeWorkflowError(w, logger, "token balance lookup failed", err)
			return
		}
		writeJSON(w, tokenBalanceResponse{
			Mint:     result.Mint.String(),
			Owner:    result.Owner.String(),
			Account:  result.Account.String(),
			Exists:   result.Exists,
			Amount:   result.Amount,
			UIAmount: result.UIAmount,
			Decimals: result.Decimals,
		}, http.StatusOK)
	})
}

type transferSummaryResponse struct {
	Amount      uint64  `json:"amount"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	TokenMint   *string `json:"token_mint,omitempty"`
}

type historyEntryResponse struct {
	Signature string                   `json:"signature"`
	Slot      uint64                   `json:"slot"`
	BlockTime time.Time                `json:"block_time"`
	Transfer  *transferSummaryResponse `json:"transfer,omitempty"`
	Err       *string                  `json:"err,omitempty"`
}

// handleHistory returns a handler that lists recent transactions for an
// address, newest first.
// GET /api/v1/history/{address}?limit=
func handleHistory(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 1000 {
				writeError(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
				return
			}
			limit = n
		}

		entries, err := workflows.History(r.Context(), r.PathValue("address"), limit)
		if err != nil {
			writeWorkflowError(w, logger, "history lookup failed", err)
			return
		}

		resp := make([]historyEntryResponse, len(entries))
		for i, e := range entries {
			resp[i] = historyEntryToResponse(e)
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

type airdropRequest struct {
	Address string `json:"address"`
	SOL     string `json:"sol"`
}

type airdropResponse struct {
	Address   string `json:"address"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature"`
}

// handleAirdrop returns a handler that requests devnet SOL for an address.
// POST /api/v1/airdrops
func handleAirdrop(workflows Workflows, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req airdropRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Address == "" || req.SOL == "" {
			writeError(w, "address and sol are required", http.StatusBadRequest)
			return
		}

		result, err := workflows.Airdrop(r.Context(), req.Address, req.SOL)
		if err != nil {
			writeWorkflowError(w, logger, "airdrop failed", err)
			return
		}
		writeJSON(w, airdropResponse{
			Address:   result.Address.String(),
			Lamports:  result.Lamports,
			Signature: result.Signature.String(),
		}, http.StatusOK)
	})
}

type submissionResponse struct {
	Signature   string    `json:"signature"`
	Kind        string    `json:"kind"`
	Payer       string    `json:"payer"`
	SubmittedAt time.Time `json:"submitted_at"`
	Outcome     *string   `json:"outcome,omitempty"`
	Reason      *string   `json:"reason,omitempty"`
}

// handleListSubmissions returns a handler that lists the submission audit log.
// GET /api/v1/submissions?limit=
func handleListSubmissions(store *db.Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 1000 {
				writeError(w, "limit must be an integer between 1 and 1000", http.StatusBadRequest)
				return
			}
			limit = n
		}

		subs, err := store.ListRecent(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list submissions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]submissionResponse, len(subs))
		for i, sub := range subs {
			resp[i] = submissionResponse{
				Signature:   sub.Signature,
				Kind:        sub.Kind,
				Payer:       sub.Payer,
				SubmittedAt: sub.SubmittedAt,
				Outcome:     sub.Outcome,
				Reason:      sub.Reason,
			}
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

func historyEntryToResponse(e solanasvc.HistoryEntry) historyEntryResponse {
	resp := historyEntryResponse{
		Signature: e.Signature,
		Slot:      e.Slot,
		BlockTime: e.BlockTime,
		Err:       e.Err,
	}
	if e.Transfer != nil {
		resp.Transfer = &transferSummaryResponse{
			Amount:      e.Transfer.Amount,
			Source:      e.Transfer.Source,
			Destination: e.Transfer.Destination,
			TokenMint:   e.Transfer.TokenMint,
		}
	}
	return resp
}

func decodeBody(r *http.Request, out interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusForError maps a classified workflow failure to its HTTP status.
func statusForError(err error) int {
	kind, ok := workflow.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case workflow.KindValidation:
		return http.StatusBadRequest
	case workflow.KindBusy:
		return http.StatusConflict
	case workflow.KindSigningRejected:
		return http.StatusUnprocessableEntity
	case workflow.KindConfirmationTimedOut:
		return http.StatusGatewayTimeout
	case workflow.KindResolutionFailed,
		workflow.KindResolutionInconsistent,
		workflow.KindSubmissionFailed,
		workflow.KindConfirmationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeWorkflowError renders a classified failure with its kind in the body so
// clients can branch without parsing messages.
func writeWorkflowError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusForError(err)
	if status >= 500 {
		logger.Error(msg, "error", err)
	} else {
		logger.Debug(msg, "error", err)
	}

	body := map[string]string{"error": err.Error()}
	if kind, ok := workflow.KindOf(err); ok {
		body["kind"] = kind.String()
	}
	var werr *workflow.Error
	if errors.As(err, &werr) && werr.Err != nil {
		body["detail"] = werr.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
