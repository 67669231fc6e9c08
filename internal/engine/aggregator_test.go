package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/model"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func patternCandidate(confidence float64, fields model.TransactionFields) *model.Candidate {
	return &model.Candidate{
		CommunicationID: "comm-1",
		Method:          model.MethodPattern,
		Confidence:      confidence,
		Fields:          fields,
		Spans: []model.FieldSpan{
			{Field: "price", Start: 10, End: 18, Text: "$450,000"},
		},
	}
}

func llmCandidate(confidence float64, fields model.TransactionFields) *model.Candidate {
	return &model.Candidate{
		CommunicationID: "comm-1",
		Method:          model.MethodLLM,
		Confidence:      confidence,
		Fields:          fields,
	}
}

func TestAggregate_PassThrough(t *testing.T) {
	p := patternCandidate(0.65, model.TransactionFields{TransactionType: model.TypePurchase})
	l := llmCandidate(0.9, model.TransactionFields{TransactionType: model.TypeSale})

	tests := []struct {
		name    string
		pattern *model.Candidate
		llm     *model.Candidate
		want    *model.Candidate
		wantOK  bool
	}{
		{name: "both nil", wantOK: false},
		{name: "pattern only", pattern: p, want: p, wantOK: true},
		{name: "llm only", llm: l, want: l, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Aggregate(tt.pattern, tt.llm)
			assert.Equal(t, tt.wantOK, ok)
			assert.Same(t, tt.want, got, "single-source candidates pass through unchanged")
		})
	}
}

func TestAggregate_AgreementTakesMaxConfidence(t *testing.T) {
	p := patternCandidate(0.65, model.TransactionFields{
		TransactionType: model.TypePurchase,
		Price:           dec("450000"),
	})
	l := llmCandidate(0.9, model.TransactionFields{
		TransactionType: model.TypePurchase,
		PropertyAddress: "123 Main Street",
	})

	merged, ok := Aggregate(p, l)
	require.True(t, ok)
	require.NotNil(t, merged)

	assert.Equal(t, model.MethodHybrid, merged.Method)
	assert.InDelta(t, 0.9, merged.Confidence, 0.001)
	assert.Equal(t, model.TypePurchase, merged.Fields.TransactionType)
	assert.Equal(t, "123 Main Street", merged.Fields.PropertyAddress)
	require.NotNil(t, merged.Fields.Price)
	assert.True(t, merged.Fields.Price.Equal(decimal.RequireFromString("450000")))
	assert.Empty(t, merged.Conflicts)
	assert.Equal(t, p.Spans, merged.Spans, "evidence spans come from the pattern tier")
}

func TestAggregate_TypeConflictDiscountsConfidence(t *testing.T) {
	p := patternCandidate(0.75, model.TransactionFields{TransactionType: model.TypeSale})
	l := llmCandidate(0.9, model.TransactionFields{TransactionType: model.TypePurchase})

	merged, ok := Aggregate(p, l)
	require.True(t, ok)

	// min(0.75, 0.9) * 0.8 = 0.6
	assert.InDelta(t, 0.6, merged.Confidence, 0.001)
	assert.Equal(t, model.TypePurchase, merged.Fields.TransactionType, "llm wins free-text fields")

	require.Len(t, merged.Conflicts, 1)
	assert.Equal(t, "transaction_type", merged.Conflicts[0].Field)
	assert.Equal(t, string(model.TypeSale), merged.Conflicts[0].PatternValue)
	assert.Equal(t, string(model.TypePurchase), merged.Conflicts[0].LLMValue)
}

func TestAggregate_ConflictConfidenceBelowBothSources(t *testing.T) {
	p := patternCandidate(0.5, model.TransactionFields{TransactionType: model.TypeLease})
	l := llmCandidate(0.55, model.TransactionFields{TransactionType: model.TypeRental})

	merged, ok := Aggregate(p, l)
	require.True(t, ok)
	assert.Less(t, merged.Confidence, p.Confidence)
	assert.Less(t, merged.Confidence, l.Confidence)
	assert.Greater(t, merged.Confidence, 0.0)
}

func TestAggregate_FieldMergeRules(t *testing.T) {
	p := patternCandidate(0.75, model.TransactionFields{
		TransactionType: model.TypePurchase,
		PropertyAddress: "123 Main St",
		ListingID:       "MLS4471",
		ClosingDate:     "2026-03-14",
		Price:           dec("450000"),
	})
	l := llmCandidate(0.85, model.TransactionFields{
		TransactionType: model.TypePurchase,
		PropertyAddress: "123 Main Street, Springfield",
		ListingID:       "MLS9999",
		ClosingDate:     "2026-03-15",
		Price:           dec("455000"),
	})

	merged, ok := Aggregate(p, l)
	require.True(t, ok)

	// Free-text disagreements resolve toward the llm value.
	assert.Equal(t, "123 Main Street, Springfield", merged.Fields.PropertyAddress)
	// Strictly-formatted disagreements resolve toward the pattern value.
	assert.Equal(t, "MLS4471", merged.Fields.ListingID)
	assert.Equal(t, "2026-03-14", merged.Fields.ClosingDate)
	require.NotNil(t, merged.Fields.Price)
	assert.True(t, merged.Fields.Price.Equal(decimal.RequireFromString("450000")))

	// Every disagreement is recorded.
	fields := make(map[string]model.FieldConflict)
	for _, c := range merged.Conflicts {
		fields[c.Field] = c
	}
	require.Len(t, fields, 4)
	assert.Equal(t, "450000", fields["price"].PatternValue)
	assert.Equal(t, "455000", fields["price"].LLMValue)
	assert.Contains(t, fields, "property_address")
	assert.Contains(t, fields, "listing_id")
	assert.Contains(t, fields, "closing_date")
}

func TestAggregate_EmptyFieldsFilledFromEitherSource(t *testing.T) {
	p := patternCandidate(0.5, model.TransactionFields{
		ListingID: "MLS4471",
	})
	l := llmCandidate(0.8, model.TransactionFields{
		TransactionType: model.TypeSale,
		PropertyAddress: "9 Cedar Court",
		Price:           dec("1200000"),
	})

	merged, ok := Aggregate(p, l)
	require.True(t, ok)

	assert.Equal(t, model.TypeSale, merged.Fields.TransactionType)
	assert.Equal(t, "9 Cedar Court", merged.Fields.PropertyAddress)
	assert.Equal(t, "MLS4471", merged.Fields.ListingID)
	require.NotNil(t, merged.Fields.Price)
	assert.True(t, merged.Fields.Price.Equal(decimal.RequireFromString("1200000")))
	assert.Empty(t, merged.Conflicts, "filling blanks is not a conflict")
	assert.InDelta(t, 0.8, merged.Confidence, 0.001)
}
