package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CreateMintResult is the server's response to a create-mint request.
type CreateMintResult struct {
	Mint      string `json:"mint"`
	Authority string `json:"authority"`
	Decimals  uint8  `json:"decimals"`
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// MintResult is the server's response to a mint request.
type MintResult struct {
	Mint           string `json:"mint"`
	Destination    string `json:"destination"`
	Amount         uint64 `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	Signature      string `json:"signature"`
	Slot           uint64 `json:"slot"`
}

// TransferResult is the server's response to a transfer request.
type TransferResult struct {
	Mint           string `json:"mint"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	Amount         uint64 `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	CreatedAccount bool   `json:"created_account"`
	Signature      string `json:"signature"`
	Slot           uint64 `json:"slot"`
}

// Balance is a wallet's native balance.
type Balance struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
	SOL      string `json:"sol"`
}

// TokenBalance is an owner's balance for one mint.
type TokenBalance struct {
	Mint     string `json:"mint"`
	Owner    string `json:"owner"`
	Account  string `json:"account"`
	Exists   bool   `json:"exists"`
	Amount   uint64 `json:"amount"`
	UIAmount string `json:"ui_amount"`
	Decimals uint8  `json:"decimals"`
}

// TransferSummary is the parsed transfer of a history entry.
type TransferSummary struct {
	Amount      uint64  `json:"amount"`
	Source      string  `json:"source"`
	Destination string  `json:"destination"`
	TokenMint   *string `json:"token_mint,omitempty"`
}

// HistoryEntry is one recent transaction for an address.
type HistoryEntry struct {
	Signature string           `json:"signature"`
	Slot      uint64           `json:"slot"`
	BlockTime time.Time        `json:"block_time"`
	Transfer  *TransferSummary `json:"transfer,omitempty"`
	Err       *string          `json:"err,omitempty"`
}

// AirdropResult is the server's response to an airdrop request.
type AirdropResult struct {
	Address   string `json:"address"`
	Lamports  uint64 `json:"lamports"`
	Signature string `json:"signature"`
}

// APIError is a classified failure returned by the server.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("server error (%d, %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the token service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a token service client. The default HTTP timeout leaves
// room for the server's confirmation polling; pass a custom httpClient to
// change it.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateMint creates a new fungible token mint.
func (c *Client) CreateMint(ctx context.Context, decimals uint8) (*CreateMintResult, error) {
	var out CreateMintResult
	err := c.post(ctx, "/api/v1/mints", map[string]interface{}{
		"decimals": decimals,
	}, http.StatusCreated, &out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("mint created", "mint", out.Mint, "signature", out.Signature)
	return &out, nil
}

// MintTo mints supply of the given mint into the service wallet's account.
func (c *Client) MintTo(ctx context.Context, mint, amount string) (*MintResult, error) {
	path := fmt.Sprintf("/api/v1/mints/%s/mint", url.PathEscape(mint))
	var out MintResult
	err := c.post(ctx, path, map[string]interface{}{
		"amount": amount,
	}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("supply minted", "mint", mint, "amount", amount, "signature", out.Signature)
	return &out, nil
}

// Transfer sends tokens to a recipient.
func (c *Client) Transfer(ctx context.Context, mint, recipient, amount string) (*TransferResult, error) {
	var out TransferResult
	err := c.post(ctx, "/api/v1/transfers", map[string]interface{}{
		"mint":      mint,
		"recipient": recipient,
		"amount":    amount,
	}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("tokens transferred", "mint", mint, "recipient", recipient, "signature", out.Signature)
	return &out, nil
}

// Balance reads an address's native balance.
func (c *Client) Balance(ctx context.Context, address string) (*Balance, error) {
	var out Balance
	if err := c.get(ctx, "/api/v1/balance/"+url.PathEscape(address), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenBalance reads an owner's balance for one mint.
func (c *Client) TokenBalance(ctx context.Context, mint, owner string) (*TokenBalance, error) {
	path := fmt.Sprintf("/api/v1/token-balance/%s/%s", url.PathEscape(mint), url.PathEscape(owner))
	var out TokenBalance
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists recent transactions for an address, newest first. limit <= 0
// uses the server's default.
func (c *Client) History(ctx context.Context, address string, limit int) ([]HistoryEntry, error) {
	path := "/api/v1/history/" + url.PathEscape(address)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []HistoryEntry
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Airdrop requests devnet SOL for an address.
func (c *Client) Airdrop(ctx context.Context, address, sol string) (*AirdropResult, error) {
	var out AirdropResult
	err := c.post(ctx, "/api/v1/airdrops", map[string]interface{}{
		"address": address,
		"sol":     sol,
	}, http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body map[string]interface{}, wantStatus int, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) parseErrorResponse(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}
