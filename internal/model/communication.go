// Package model defines the core domain models used throughout the application.
package model

import "time"

// Communication represents a single ingested message or email.
// Communications are immutable once ingested except for the
// LinkedTransactionID, which detection and propagation may set.
type Communication struct {
	Timestamp           time.Time
	ID                  string
	ThreadID            string
	Sender              string
	Body                string
	LinkedTransactionID *string
	Recipients          []string
}

// IsLinked reports whether this communication is already associated with a
// transaction.
func (c *Communication) IsLinked() bool {
	return c.LinkedTransactionID != nil && *c.LinkedTransactionID != ""
}

// LinkedTo reports whether this communication is linked to the given
// transaction id.
func (c *Communication) LinkedTo(transactionID string) bool {
	return c.LinkedTransactionID != nil && *c.LinkedTransactionID == transactionID
}
