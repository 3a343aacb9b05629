package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/pilab-dev/helpline/internal/audit"
	"github.com/pilab-dev/helpline/mongodb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepositoryMongo(t *testing.T) {
	db := testutil.SetupTestMongoDB(t, "test_helpline_audit")
	ctx := context.Background()

	repo, err := NewAuditRepositoryMongo(ctx, db)
	require.NoError(t, err)

	base := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	entries := []audit.MessageEntry{
		{ID: "m2", Timestamp: base.Add(time.Minute), SessionKey: "u1:+1", Direction: audit.DirectionAutomated, Body: "Reply AGREE"},
		{ID: "m1", Timestamp: base, SessionKey: "u1:+1", Direction: audit.DirectionInbound, Body: "hi"},
		{ID: "m3", Timestamp: base, SessionKey: "u2:+1", Direction: audit.DirectionInbound, Body: "other"},
	}
	for _, e := range entries {
		require.NoError(t, repo.RecordMessage(ctx, e))
	}
	// Retried inserts are ignored.
	require.NoError(t, repo.RecordMessage(ctx, entries[0]))

	transcript, err := repo.Transcript(ctx, "u1:+1", 0)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "hi", transcript[0].Body)
	assert.Equal(t, "Reply AGREE", transcript[1].Body)

	require.NoError(t, repo.RecordStatusChange(ctx, audit.StatusChangeEntry{
		ID:         "s1",
		Timestamp:  base,
		SessionKey: "u1:+1",
		Action:     "session_started",
		ToState:    "AWAITING_DISCLAIMER",
	}))
	n, err := db.Collection(StatusChangesCollection).CountDocuments(ctx, map[string]string{"session_key": "u1:+1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
