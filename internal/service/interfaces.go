// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/caravelhq/caravel/internal/model"
)

// FeedbackFilter defines filtering options for feedback queries.
type FeedbackFilter struct {
	Since         *time.Time
	TransactionID string
	ProviderID    string
	PromptVersion string
	Action        model.FeedbackAction
	Limit         int
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Communication operations
	SaveCommunications(ctx context.Context, comms []model.Communication) error
	GetCommunication(ctx context.Context, id string) (*model.Communication, error)
	GetThreadCommunications(ctx context.Context, threadID string) ([]model.Communication, error)
	SetLinkedTransaction(ctx context.Context, communicationID, transactionID string) error

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, status model.TransactionStatus, limit int) ([]model.Transaction, error)
	GetTransactionByCommunication(ctx context.Context, communicationID string) (*model.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error
	UpdateTransactionFields(ctx context.Context, id string, fields model.TransactionFields) error

	// Feedback operations
	AppendFeedback(ctx context.Context, record *model.FeedbackRecord) error
	QueryFeedback(ctx context.Context, filter FeedbackFilter) ([]model.FeedbackRecord, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for transient failures.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PropagationResult reports the outcome of linking a thread to a
// transaction.
type PropagationResult struct {
	LinkedIDs  []string
	SkippedIDs []SkippedLink
}

// SkippedLink records a communication that could not be linked because it
// already belongs to a different transaction.
type SkippedLink struct {
	CommunicationID string
	ExistingID      string
	Note            string
}
