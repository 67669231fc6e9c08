package feedback

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/service"
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

func seedTransaction(t *testing.T, store *storage.SQLiteStorage, id string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, store.CreateTransaction(context.Background(), &model.Transaction{
		ID:         id,
		Status:     model.StatusPending,
		Source:     model.MethodHybrid,
		Confidence: 0.8,
		Fields: model.TransactionFields{
			TransactionType: model.TypePurchase,
			PropertyAddress: "123 Main Street",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func TestRecord_ConfirmMarksConfirmed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTransaction(t, store, "txn-1")

	r := NewRecorder(store, slog.Default())
	err := r.Record(ctx, "txn-1", model.ActionConfirm, nil, "openai/gpt-4o-mini", "v2")
	require.NoError(t, err)

	txn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, txn.Status)

	records, err := store.QueryFeedback(ctx, service.FeedbackFilter{TransactionID: "txn-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.ActionConfirm, records[0].Action)
	assert.Equal(t, "openai/gpt-4o-mini", records[0].ProviderID)
	assert.Equal(t, "v2", records[0].PromptVersion)
}

func TestRecord_RejectMarksRejected(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTransaction(t, store, "txn-1")

	r := NewRecorder(store, slog.Default())
	err := r.Record(ctx, "txn-1", model.ActionReject,
		&model.Corrections{Reason: "not a real estate transaction"}, "", "")
	require.NoError(t, err)

	txn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, txn.Status)
}

func TestRecord_EditAppliesCorrectionsAndConfirms(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTransaction(t, store, "txn-1")

	r := NewRecorder(store, slog.Default())
	err := r.Record(ctx, "txn-1", model.ActionEdit, &model.Corrections{
		Fields: map[string]string{
			"property_address": "125 Main Street",
			"closing_date":     "2026-04-01",
		},
	}, "openai/gpt-4o-mini", "v2")
	require.NoError(t, err)

	txn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, txn.Status, "an edit still counts as keeping the detection")
	assert.Equal(t, "125 Main Street", txn.Fields.PropertyAddress)
	assert.Equal(t, "2026-04-01", txn.Fields.ClosingDate)
	assert.Equal(t, model.TypePurchase, txn.Fields.TransactionType, "untouched fields survive an edit")
}

func TestRecord_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	r := NewRecorder(store, slog.Default())

	assert.Error(t, r.Record(ctx, "", model.ActionConfirm, nil, "", ""))
	assert.Error(t, r.Record(ctx, "txn-1", model.FeedbackAction("approve"), nil, "", ""))

	records, err := store.QueryFeedback(ctx, service.FeedbackFilter{})
	require.NoError(t, err)
	assert.Empty(t, records, "invalid input must not reach the log")
}

func TestRecord_LogIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTransaction(t, store, "txn-1")

	r := NewRecorder(store, slog.Default())

	// A user can change their mind; both dispositions stay in the log.
	require.NoError(t, r.Record(ctx, "txn-1", model.ActionConfirm, nil, "", ""))
	require.NoError(t, r.Record(ctx, "txn-1", model.ActionReject,
		&model.Corrections{Reason: "duplicate of another transaction"}, "", ""))

	records, err := store.QueryFeedback(ctx, service.FeedbackFilter{TransactionID: "txn-1"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	txn, err := store.GetTransaction(ctx, "txn-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, txn.Status, "the latest disposition wins on the transaction")
}

func TestRecordBatch_PartialSuccess(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedTransaction(t, store, "txn-1")
	seedTransaction(t, store, "txn-2")

	r := NewRecorder(store, slog.Default())
	results := r.RecordBatch(ctx, []BatchItem{
		{TransactionID: "txn-1", Action: model.ActionConfirm},
		{TransactionID: "txn-missing", Action: model.ActionConfirm},
		{TransactionID: "txn-2", Action: model.ActionReject,
			Corrections: &model.Corrections{Reason: "wrong address"}},
	}, "", "")

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "a missing transaction fails its own item only")
	assert.NoError(t, results[2].Err)

	txn, err := store.GetTransaction(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, txn.Status)
}
