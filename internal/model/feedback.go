package model

import "time"

// FeedbackAction is the user's disposition on a detected transaction.
type FeedbackAction string

// Feedback action constants.
const (
	ActionConfirm FeedbackAction = "confirm"
	ActionEdit    FeedbackAction = "edit"
	ActionReject  FeedbackAction = "reject"
)

// Valid reports whether the action is one of the known dispositions.
func (a FeedbackAction) Valid() bool {
	switch a {
	case ActionConfirm, ActionEdit, ActionReject:
		return true
	default:
		return false
	}
}

// Corrections captures what the user changed or why they rejected a
// detection. Parsed once at the storage boundary; the analyzer works with
// the typed form only.
type Corrections struct {
	Fields map[string]string `json:"fields,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

// FeedbackRecord is one append-only entry in the disposition log. Records
// are created exactly once per user action and never mutated or deleted.
type FeedbackRecord struct {
	CreatedAt     time.Time
	Corrections   *Corrections
	TransactionID string
	ProviderID    string
	PromptVersion string
	Action        FeedbackAction
	ID            int64
}
