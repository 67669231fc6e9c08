package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caravelhq/caravel/internal/common"
	"github.com/caravelhq/caravel/internal/model"
)

// candidateJSON mirrors the JSON object the extraction prompt requests.
type candidateJSON struct {
	TransactionType string  `json:"transaction_type"`
	PropertyAddress string  `json:"property_address"`
	Price           any     `json:"price"`
	ListingID       string  `json:"listing_id"`
	ClosingDate     string  `json:"closing_date"`
	Confidence      float64 `json:"confidence"`
	IsTransaction   bool    `json:"is_transaction"`
}

// parseCandidate converts a provider's JSON output into a candidate.
// Returns (nil, nil) when the provider decided the communication is not a
// transaction, which is an expected-empty outcome.
func parseCandidate(communicationID, content string) (*model.Candidate, error) {
	content = cleanMarkdownWrapper(content)

	var parsed candidateJSON
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResult, err)
	}

	if !parsed.IsTransaction {
		return nil, nil
	}

	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %.3f out of range", common.ErrMalformedResult, parsed.Confidence)
	}

	fields := model.TransactionFields{
		PropertyAddress: strings.TrimSpace(parsed.PropertyAddress),
		ListingID:       strings.ToUpper(strings.TrimSpace(parsed.ListingID)),
		ClosingDate:     strings.TrimSpace(parsed.ClosingDate),
	}

	switch model.TransactionType(parsed.TransactionType) {
	case model.TypePurchase, model.TypeSale, model.TypeLease, model.TypeRental:
		fields.TransactionType = model.TransactionType(parsed.TransactionType)
	case "":
		// Type is optional.
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", common.ErrMalformedResult, parsed.TransactionType)
	}

	if price, ok := parsePrice(parsed.Price); ok {
		fields.Price = &price
	}

	return &model.Candidate{
		CommunicationID: communicationID,
		Method:          model.MethodLLM,
		Fields:          fields,
		Confidence:      parsed.Confidence,
	}, nil
}

// parsePrice accepts either a JSON number or a numeric string, with optional
// currency noise. Unparseable prices are dropped rather than failing the
// whole candidate.
func parsePrice(v any) (decimal.Decimal, bool) {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case float64:
		return decimal.NewFromFloat(t), true
	default:
		return decimal.Decimal{}, false
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return decimal.Decimal{}, false
	}

	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}

// cleanMarkdownWrapper strips a fenced code block if the provider wrapped
// its JSON in one.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
