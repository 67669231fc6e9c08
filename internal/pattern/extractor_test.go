package pattern

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caravelhq/caravel/internal/model"
)

func comm(body string) model.Communication {
	return model.Communication{
		ID:       "comm-1",
		ThreadID: "thread-1",
		Sender:   "agent@example.com",
		Body:     body,
	}
}

func TestExtract(t *testing.T) {
	e := NewExtractor()

	tests := []struct {
		name           string
		body           string
		wantCandidate  bool
		wantType       model.TransactionType
		wantAddress    string
		wantListing    string
		wantConfidence float64
	}{
		{
			name:          "no indicators",
			body:          "Lunch on Thursday?",
			wantCandidate: false,
		},
		{
			name:          "single indicator below threshold",
			body:          "That vintage lamp is $45.00 on the auction site",
			wantCandidate: false,
		},
		{
			name:           "amount plus address",
			body:           "Thinking about 123 Main Street, asking $450,000",
			wantCandidate:  true,
			wantAddress:    "123 Main Street",
			wantConfidence: 0.5,
		},
		{
			name:           "amount address and purchase keyword",
			body:           "Our offer to purchase 123 Main Street stands at $450,000",
			wantCandidate:  true,
			wantType:       model.TypePurchase,
			wantAddress:    "123 Main Street",
			wantConfidence: 0.65,
		},
		{
			name:           "four indicators",
			body:           "Buyer confirmed: 88 Oak Avenue, $320,000, MLS# 77421",
			wantCandidate:  true,
			wantType:       model.TypePurchase,
			wantAddress:    "88 Oak Avenue",
			wantListing:    "77421",
			wantConfidence: 0.75,
		},
		{
			name:           "all five indicators",
			body:           "Seller accepted $1,200,000 for 9 Cedar Court, MLS #4471, closing set for 3/14/2026",
			wantCandidate:  true,
			wantType:       model.TypeSale,
			wantAddress:    "9 Cedar Court",
			wantListing:    "4471",
			wantConfidence: 0.85,
		},
		{
			name:           "lease vocabulary",
			body:           "Lease terms for 400 Pine Lane attached, deposit $4,500.00",
			wantCandidate:  true,
			wantType:       model.TypeLease,
			wantAddress:    "400 Pine Lane",
			wantConfidence: 0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand := e.Extract(comm(tt.body))

			if !tt.wantCandidate {
				assert.Nil(t, cand)
				return
			}

			require.NotNil(t, cand)
			assert.Equal(t, "comm-1", cand.CommunicationID)
			assert.Equal(t, model.MethodPattern, cand.Method)
			assert.InDelta(t, tt.wantConfidence, cand.Confidence, 0.001)
			assert.Equal(t, tt.wantType, cand.Fields.TransactionType)
			assert.Equal(t, tt.wantAddress, cand.Fields.PropertyAddress)
			assert.Equal(t, tt.wantListing, cand.Fields.ListingID)
		})
	}
}

func TestExtract_PriceParsing(t *testing.T) {
	e := NewExtractor()

	cand := e.Extract(comm("Offer on 12 Elm Street at $1,250,000.00"))
	require.NotNil(t, cand)
	require.NotNil(t, cand.Fields.Price)
	assert.True(t, cand.Fields.Price.Equal(decimal.RequireFromString("1250000.00")),
		"got %s", cand.Fields.Price)
}

func TestExtract_SpansPointAtBody(t *testing.T) {
	e := NewExtractor()
	body := "Our offer to purchase 123 Main Street stands at $450,000"

	cand := e.Extract(comm(body))
	require.NotNil(t, cand)
	require.NotEmpty(t, cand.Spans)

	for _, span := range cand.Spans {
		assert.Equal(t, span.Text, body[span.Start:span.End])
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor()
	c := comm("Purchase offer: 77 Birch Road, $500,000, MLS# 1234")

	first := e.Extract(c)
	second := e.Extract(c)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Fields, second.Fields)
}
