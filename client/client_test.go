package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "POST", r.Method)
		require.Equal(t, "/api/v1/mints", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(6), body["decimals"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateMintResult{
			Mint:      "MintAddr",
			Decimals:  6,
			Signature: "sig",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	result, err := c.CreateMint(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, "MintAddr", result.Mint)
	assert.Equal(t, "sig", result.Signature)
}

func TestTransfer_ClassifiedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "transfer tokens: a previous operation of this kind is still in progress",
			"kind":  "busy",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	_, err := c.Transfer(context.Background(), "m", "r", "1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "busy", apiErr.Kind)
	assert.Contains(t, apiErr.Message, "in progress")
}

func TestHistory_LimitQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]HistoryEntry{
			{Signature: "a"},
			{Signature: "b"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	entries, err := c.History(context.Background(), "addr", 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Signature)
}

func TestTokenBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/token-balance/mintX/ownerY", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenBalance{Exists: true, Amount: 2500000, UIAmount: "2.5"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	tb, err := c.TokenBalance(context.Background(), "mintX", "ownerY")
	require.NoError(t, err)
	assert.True(t, tb.Exists)
	assert.Equal(t, "2.5", tb.UIAmount)
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil, nil)
	assert.NoError(t, c.Health(context.Background()))
}
