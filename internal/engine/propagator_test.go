package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/storage"
)

func newTestStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedThread(t *testing.T, store *storage.SQLiteStorage, threadID string, ids ...string) {
	t.Helper()

	comms := make([]model.Communication, 0, len(ids))
	base := time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		comms = append(comms, model.Communication{
			ID:         id,
			ThreadID:   threadID,
			Sender:     "agent@example.com",
			Recipients: []string{"buyer@example.com"},
			Body:       "message body",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	require.NoError(t, store.SaveCommunications(context.Background(), comms))
}

func seedTransaction(t *testing.T, store *storage.SQLiteStorage, id string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, store.CreateTransaction(context.Background(), &model.Transaction{
		ID:         id,
		Status:     model.StatusPending,
		Source:     model.MethodPattern,
		Confidence: 0.5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

func TestPropagate_LinksUnlinkedThreadMembers(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedThread(t, store, "thread-1", "comm-1", "comm-2", "comm-3")
	seedTransaction(t, store, "txn-1")
	require.NoError(t, store.SetLinkedTransaction(ctx, "comm-1", "txn-1"))

	p := NewPropagator(store, slog.Default())
	result, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"comm-2", "comm-3"}, result.LinkedIDs)
	assert.Empty(t, result.SkippedIDs)

	for _, id := range []string{"comm-1", "comm-2", "comm-3"} {
		comm, err := store.GetCommunication(ctx, id)
		require.NoError(t, err)
		assert.True(t, comm.LinkedTo("txn-1"), "communication %s", id)
	}
}

func TestPropagate_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedThread(t, store, "thread-1", "comm-1", "comm-2")
	seedTransaction(t, store, "txn-1")
	require.NoError(t, store.SetLinkedTransaction(ctx, "comm-1", "txn-1"))

	p := NewPropagator(store, slog.Default())

	first, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"comm-2"}, first.LinkedIDs)

	second, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)
	assert.Empty(t, second.LinkedIDs, "a second run has nothing left to link")
	assert.Empty(t, second.SkippedIDs, "matching links are not conflicts")
}

func TestPropagate_NeverOverwritesExistingLink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedThread(t, store, "thread-1", "comm-1", "comm-2", "comm-3")
	seedTransaction(t, store, "txn-1")
	seedTransaction(t, store, "txn-2")

	// comm-2 was already claimed by a different transaction.
	require.NoError(t, store.SetLinkedTransaction(ctx, "comm-1", "txn-1"))
	require.NoError(t, store.SetLinkedTransaction(ctx, "comm-2", "txn-2"))

	p := NewPropagator(store, slog.Default())
	result, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"comm-3"}, result.LinkedIDs)
	require.Len(t, result.SkippedIDs, 1)
	assert.Equal(t, "comm-2", result.SkippedIDs[0].CommunicationID)
	assert.Equal(t, "txn-2", result.SkippedIDs[0].ExistingID)

	comm, err := store.GetCommunication(ctx, "comm-2")
	require.NoError(t, err)
	assert.True(t, comm.LinkedTo("txn-2"), "the existing link must survive propagation")
}

func TestPropagate_NewArrivalsPickedUpOnRerun(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedThread(t, store, "thread-1", "comm-1")
	seedTransaction(t, store, "txn-1")
	require.NoError(t, store.SetLinkedTransaction(ctx, "comm-1", "txn-1"))

	p := NewPropagator(store, slog.Default())
	_, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)

	// A reply arrives after the first propagation.
	seedThread(t, store, "thread-1", "comm-4")

	result, err := p.Propagate(ctx, "txn-1", "comm-1", "thread-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"comm-4"}, result.LinkedIDs)
}
