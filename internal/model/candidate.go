package model

import (
	"github.com/shopspring/decimal"
)

// DetectionMethod indicates which extraction path produced a candidate or
// transaction.
type DetectionMethod string

// Detection method constants.
const (
	MethodManual  DetectionMethod = "manual"
	MethodPattern DetectionMethod = "pattern"
	MethodLLM     DetectionMethod = "llm"
	MethodHybrid  DetectionMethod = "hybrid"
)

// methodRank orders methods for confidence tie-breaking: hybrid beats llm
// beats pattern.
func (m DetectionMethod) rank() int {
	switch m {
	case MethodHybrid:
		return 3
	case MethodLLM:
		return 2
	case MethodPattern:
		return 1
	default:
		return 0
	}
}

// Outranks reports whether m wins a confidence tie against other.
func (m DetectionMethod) Outranks(other DetectionMethod) bool {
	return m.rank() > other.rank()
}

// TransactionType is the kind of real-estate deal a communication describes.
type TransactionType string

// Transaction type constants.
const (
	TypePurchase TransactionType = "purchase"
	TypeSale     TransactionType = "sale"
	TypeLease    TransactionType = "lease"
	TypeRental   TransactionType = "rental"
)

// TransactionFields holds the structured fields extracted from a
// communication.
type TransactionFields struct {
	Price           *decimal.Decimal `json:"price,omitempty"`
	PropertyAddress string           `json:"property_address,omitempty"`
	TransactionType TransactionType  `json:"transaction_type,omitempty"`
	ListingID       string           `json:"listing_id,omitempty"`
	ClosingDate     string           `json:"closing_date,omitempty"`
}

// FieldSpan records the raw-text evidence supporting one extracted field.
type FieldSpan struct {
	Field string `json:"field"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// FieldConflict records a disagreement between extraction sources for audit.
type FieldConflict struct {
	Field        string `json:"field"`
	PatternValue string `json:"pattern_value"`
	LLMValue     string `json:"llm_value"`
}

// Candidate is the transient result of one extraction attempt. Candidates
// are never persisted directly; only the winning aggregated result becomes a
// transaction.
type Candidate struct {
	CommunicationID string
	Method          DetectionMethod
	Fields          TransactionFields
	Spans           []FieldSpan
	Conflicts       []FieldConflict
	Confidence      float64
}
