package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mintdesk/mintdesk/service/workflow"
)

func TestRecordAndUpdateSubmission(t *testing.T) {
	SkipIfNoTestDB(t)
	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()
	rec := &workflow.SubmissionRecord{
		Signature:   "sig-1",
		Kind:        "create_mint",
		Payer:       "payer-address",
		SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, ts.RecordSubmission(ctx, rec))

	// Recording the same signature twice is a no-op, not an error.
	require.NoError(t, ts.RecordSubmission(ctx, rec))

	require.NoError(t, ts.UpdateOutcome(ctx, "sig-1", "confirmed", ""))

	subs, err := ts.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "sig-1", subs[0].Signature)
	assert.Equal(t, "create_mint", subs[0].Kind)
	require.NotNil(t, subs[0].Outcome)
	assert.Equal(t, "confirmed", *subs[0].Outcome)
	assert.Nil(t, subs[0].Reason)
}

func TestUpdateOutcome_UnknownSignature(t *testing.T) {
	SkipIfNoTestDB(t)
	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	err := ts.UpdateOutcome(context.Background(), "missing", "failed", "boom")
	assert.Error(t, err)
}

func TestListRecent_Ordering(t *testing.T) {
	SkipIfNoTestDB(t)
	ts := NewTestStore(t)
	defer ts.Close()
	ts.Cleanup(t)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, ts.RecordSubmission(ctx, &workflow.SubmissionRecord{
			Signature:   string(rune('a' + i)),
			Kind:        "transfer",
			Payer:       "payer",
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	subs, err := ts.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "c", subs[0].Signature)
	assert.Equal(t, "b", subs[1].Signature)
}
