package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintdesk/mintdesk/client"
)

func TestApplyJQ_FieldExtraction(t *testing.T) {
	result := client.TransferResult{
		Mint:      "mint-address",
		Signature: "sig",
		Amount:    2_500_000,
	}

	out, err := applyJQ(result, ".signature")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "sig", out[0])
}

func TestApplyJQ_ArrayIteration(t *testing.T) {
	entries := []client.HistoryEntry{
		{Signature: "a", Slot: 2},
		{Signature: "b", Slot: 1},
	}

	out, err := applyJQ(entries, ".[].signature")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, out)
}

func TestApplyJQ_Select(t *testing.T) {
	entries := []client.HistoryEntry{
		{Signature: "a", Slot: 10},
		{Signature: "b", Slot: 5},
	}

	out, err := applyJQ(entries, ".[] | select(.slot > 7) | .signature")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a"}, out)
}

func TestApplyJQ_ParseError(t *testing.T) {
	_, err := applyJQ(map[string]string{}, ".[invalid")
	assert.Error(t, err)
}
