// Package feedback records user dispositions on detected transactions and
// computes accuracy analytics from the resulting append-only log.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/service"
)

// Recorder appends immutable feedback records. There is no update or delete
// path; the log only grows. Safe for unserialized concurrent writers.
type Recorder struct {
	store  service.Storage
	logger *slog.Logger
}

// NewRecorder creates a feedback recorder over the given store.
func NewRecorder(store service.Storage, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record appends one disposition and applies its effect to the transaction:
// confirm and edit mark it confirmed (edit also updates the stored fields),
// reject marks it rejected.
func (r *Recorder) Record(ctx context.Context, transactionID string, action model.FeedbackAction, corrections *model.Corrections, providerID, promptVersion string) error {
	if transactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	if !action.Valid() {
		return fmt.Errorf("unknown feedback action: %q", action)
	}

	record := &model.FeedbackRecord{
		TransactionID: transactionID,
		Action:        action,
		Corrections:   corrections,
		ProviderID:    providerID,
		PromptVersion: promptVersion,
		CreatedAt:     time.Now().UTC(),
	}

	if err := r.store.AppendFeedback(ctx, record); err != nil {
		return fmt.Errorf("failed to append feedback: %w", err)
	}

	if err := r.applyDisposition(ctx, transactionID, action, corrections); err != nil {
		return err
	}

	r.logger.Info("feedback recorded",
		"transaction_id", transactionID,
		"action", action,
		"provider_id", providerID,
		"prompt_version", promptVersion)

	return nil
}

func (r *Recorder) applyDisposition(ctx context.Context, transactionID string, action model.FeedbackAction, corrections *model.Corrections) error {
	switch action {
	case model.ActionConfirm, model.ActionEdit:
		if action == model.ActionEdit && corrections != nil && len(corrections.Fields) > 0 {
			txn, err := r.store.GetTransaction(ctx, transactionID)
			if err != nil {
				return fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
			}
			applyFieldCorrections(&txn.Fields, corrections.Fields)
			if err := r.store.UpdateTransactionFields(ctx, transactionID, txn.Fields); err != nil {
				return fmt.Errorf("failed to apply corrections: %w", err)
			}
		}
		if err := r.store.UpdateTransactionStatus(ctx, transactionID, model.StatusConfirmed); err != nil {
			return fmt.Errorf("failed to confirm transaction: %w", err)
		}
	case model.ActionReject:
		if err := r.store.UpdateTransactionStatus(ctx, transactionID, model.StatusRejected); err != nil {
			return fmt.Errorf("failed to reject transaction: %w", err)
		}
	}
	return nil
}

// applyFieldCorrections overlays user-supplied field values onto the stored
// snapshot. Unknown field names are ignored.
func applyFieldCorrections(fields *model.TransactionFields, corrections map[string]string) {
	for name, value := range corrections {
		switch name {
		case "property_address":
			fields.PropertyAddress = value
		case "transaction_type":
			fields.TransactionType = model.TransactionType(value)
		case "listing_id":
			fields.ListingID = value
		case "closing_date":
			fields.ClosingDate = value
		}
	}
}

// BatchItem is one disposition within a batched call.
type BatchItem struct {
	Corrections   *model.Corrections
	TransactionID string
	Action        model.FeedbackAction
}

// BatchResult reports the per-item outcome of a batch.
type BatchResult struct {
	Err           error
	TransactionID string
}

// RecordBatch decomposes a batched disposition into independent record
// calls. Each item succeeds or fails on its own; partial success is normal
// and reported per item.
func (r *Recorder) RecordBatch(ctx context.Context, items []BatchItem, providerID, promptVersion string) []BatchResult {
	results := make([]BatchResult, 0, len(items))
	for _, item := range items {
		err := r.Record(ctx, item.TransactionID, item.Action, item.Corrections, providerID, promptVersion)
		results = append(results, BatchResult{TransactionID: item.TransactionID, Err: err})
	}
	return results
}
