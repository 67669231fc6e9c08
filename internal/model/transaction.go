package model

import "time"

// TransactionStatus tracks where a detected transaction sits in its review
// lifecycle.
type TransactionStatus string

// Transaction status constants.
const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusRejected  TransactionStatus = "rejected"
)

// Transaction is the durable domain entity a set of communications belongs
// to. Transactions are created on first detection and mutated only by user
// dispositions; this core never deletes them.
type Transaction struct {
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ID         string
	Status     TransactionStatus
	Source     DetectionMethod
	Fields     TransactionFields
	Confidence float64
}
