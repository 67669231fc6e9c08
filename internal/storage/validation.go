package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caravelhq/caravel/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidFeedback    = errors.New("invalid feedback record")
	ErrLinkConflict       = errors.New("communication already linked to a different transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCommunications validates a slice of communications.
func validateCommunications(comms []model.Communication) error {
	if comms == nil {
		return fmt.Errorf("%w: communications", ErrNilParameter)
	}
	if len(comms) == 0 {
		return fmt.Errorf("%w: communications", ErrEmptySlice)
	}
	for i, comm := range comms {
		if comm.ID == "" {
			return fmt.Errorf("communication at index %d: missing ID", i)
		}
		if comm.ThreadID == "" {
			return fmt.Errorf("communication at index %d: missing thread ID", i)
		}
		if comm.Timestamp.IsZero() {
			return fmt.Errorf("communication at index %d: missing timestamp", i)
		}
	}
	return nil
}

// validateTransaction validates a transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Status == "" {
		return fmt.Errorf("%w: missing status", ErrInvalidTransaction)
	}
	if txn.Confidence < 0 || txn.Confidence > 1 {
		return fmt.Errorf("%w: confidence %.3f out of range", ErrInvalidTransaction, txn.Confidence)
	}
	return nil
}

// validateFeedback validates a feedback record before append.
func validateFeedback(record *model.FeedbackRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.TransactionID == "" {
		return fmt.Errorf("%w: missing transaction ID", ErrInvalidFeedback)
	}
	if !record.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidFeedback, record.Action)
	}
	return nil
}
