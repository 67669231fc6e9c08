// Package engine implements the core detection pipeline: pattern extraction,
// budget-gated escalation, confidence aggregation, and thread propagation.
package engine

import (
	"github.com/caravelhq/caravel/internal/model"
)

// conflictDiscount is applied to the lower source confidence when the two
// extraction tiers disagree on the transaction type. Tunable default, not a
// verified product constant.
const conflictDiscount = 0.8

// Aggregate merges the pattern and LLM candidates into one final candidate.
// Returns (nil, false) when neither input is present. With a single input
// the candidate passes through unchanged, method tag included.
//
// With both inputs the result is a hybrid candidate. When the sources agree
// on the transaction type, confidence is the max of the two. When they
// conflict, the LLM's field values win but confidence drops to
// min(pattern, llm) * conflictDiscount, and both source values are recorded
// for audit.
func Aggregate(patternCand, llmCand *model.Candidate) (*model.Candidate, bool) {
	switch {
	case patternCand == nil && llmCand == nil:
		return nil, false
	case llmCand == nil:
		return patternCand, true
	case patternCand == nil:
		return llmCand, true
	}

	merged := &model.Candidate{
		CommunicationID: patternCand.CommunicationID,
		Method:          model.MethodHybrid,
		Spans:           patternCand.Spans,
	}

	typeConflict := patternCand.Fields.TransactionType != "" &&
		llmCand.Fields.TransactionType != "" &&
		patternCand.Fields.TransactionType != llmCand.Fields.TransactionType

	if typeConflict {
		merged.Confidence = min(patternCand.Confidence, llmCand.Confidence) * conflictDiscount
	} else {
		merged.Confidence = max(patternCand.Confidence, llmCand.Confidence)
	}

	merged.Fields, merged.Conflicts = mergeFields(patternCand.Fields, llmCand.Fields)

	return merged, true
}

// mergeFields combines the two field sets. Whichever source provided a
// non-empty value wins outright; when both provide differing values, the LLM
// wins free-text fields (address, transaction type) and the pattern tier
// wins strictly-formatted ones (price, closing date, listing id), since
// rule-based extraction of rigid formats is less error-prone than generative
// extraction. Every disagreement is recorded as a conflict for audit.
func mergeFields(p, l model.TransactionFields) (model.TransactionFields, []model.FieldConflict) {
	var out model.TransactionFields
	var conflicts []model.FieldConflict

	note := func(field, patternVal, llmVal string) {
		conflicts = append(conflicts, model.FieldConflict{
			Field:        field,
			PatternValue: patternVal,
			LLMValue:     llmVal,
		})
	}

	// Free-text fields: LLM wins on disagreement.
	out.PropertyAddress = pickString(l.PropertyAddress, p.PropertyAddress)
	if bothDiffer(p.PropertyAddress, l.PropertyAddress) {
		note("property_address", p.PropertyAddress, l.PropertyAddress)
	}

	out.TransactionType = model.TransactionType(pickString(string(l.TransactionType), string(p.TransactionType)))
	if bothDiffer(string(p.TransactionType), string(l.TransactionType)) {
		note("transaction_type", string(p.TransactionType), string(l.TransactionType))
	}

	// Strictly-formatted fields: pattern wins on disagreement.
	out.ListingID = pickString(p.ListingID, l.ListingID)
	if bothDiffer(p.ListingID, l.ListingID) {
		note("listing_id", p.ListingID, l.ListingID)
	}

	out.ClosingDate = pickString(p.ClosingDate, l.ClosingDate)
	if bothDiffer(p.ClosingDate, l.ClosingDate) {
		note("closing_date", p.ClosingDate, l.ClosingDate)
	}

	switch {
	case p.Price != nil:
		out.Price = p.Price
		if l.Price != nil && !p.Price.Equal(*l.Price) {
			note("price", p.Price.String(), l.Price.String())
		}
	case l.Price != nil:
		out.Price = l.Price
	}

	return out, conflicts
}

// pickString returns preferred unless it is empty, in which case fallback.
func pickString(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func bothDiffer(a, b string) bool {
	return a != "" && b != "" && a != b
}
