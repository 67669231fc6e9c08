// Package pattern provides deterministic, rule-based transaction candidate
// extraction from communication text. It is the always-on first tier of the
// detection pipeline: pure, local, and bounded.
package pattern

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caravelhq/caravel/internal/model"
)

// Indicator names, used in extraction spans.
const (
	indicatorMoney   = "price"
	indicatorAddress = "property_address"
	indicatorListing = "listing_id"
	indicatorType    = "transaction_type"
	indicatorClosing = "closing_date"
)

// Extractor produces zero or one pattern candidate per communication. All
// patterns are pre-compiled and linear-time; Extract performs no I/O and
// never fails.
type Extractor struct {
	money   *regexp.Regexp
	address *regexp.Regexp
	listing *regexp.Regexp
	closing *regexp.Regexp
	dates   *regexp.Regexp
	types   []typeRule
}

type typeRule struct {
	re  *regexp.Regexp
	typ model.TransactionType
}

// NewExtractor creates an extractor with the default indicator rules.
func NewExtractor() *Extractor {
	return &Extractor{
		money:   regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d{2})?)`),
		address: regexp.MustCompile(`\b\d{1,6}\s+(?:[A-Za-z]+\s+){1,4}(?i:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Court|Ct|Way|Place|Pl|Circle|Cir|Terrace|Ter)\b`),
		listing: regexp.MustCompile(`(?i)\bMLS[\s#:-]*([A-Z0-9]{4,12})\b`),
		closing: regexp.MustCompile(`(?i)\b(?:closing|close of escrow|settlement)\b`),
		dates:   regexp.MustCompile(`\b(?:\d{1,2}/\d{1,2}/\d{2,4}|(?i:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`),
		types: []typeRule{
			{typ: model.TypePurchase, re: regexp.MustCompile(`(?i)\b(?:purchase|buyer|offer to purchase|pre-?approval)\b`)},
			{typ: model.TypeSale, re: regexp.MustCompile(`(?i)\b(?:sale|seller|listing agreement|list(?:ed|ing) price)\b`)},
			{typ: model.TypeLease, re: regexp.MustCompile(`(?i)\b(?:lease|lessee|lessor)\b`)},
			{typ: model.TypeRental, re: regexp.MustCompile(`(?i)\b(?:rent|rental|tenant|landlord)\b`)},
		},
	}
}

// confidenceForIndicators maps the number of independent matched indicators
// to an overall pattern confidence. Values stay below 1.0: rule matching
// alone is never certain.
func confidenceForIndicators(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 0.3
	case n == 2:
		return 0.5
	case n == 3:
		return 0.65
	case n == 4:
		return 0.75
	default:
		return 0.85
	}
}

// minIndicators is the threshold below which no candidate is emitted. A
// lone dollar amount or keyword is not evidence of a transaction.
const minIndicators = 2

// Extract evaluates a communication and returns a pattern candidate, or nil
// when too few indicators match. A nil result is a normal outcome, not an
// error.
func (e *Extractor) Extract(comm model.Communication) *model.Candidate {
	text := comm.Body
	indicators := 0
	var fields model.TransactionFields
	var spans []model.FieldSpan

	if loc := e.money.FindStringSubmatchIndex(text); loc != nil {
		raw := strings.ReplaceAll(text[loc[2]:loc[3]], ",", "")
		if price, err := decimal.NewFromString(raw); err == nil {
			fields.Price = &price
			spans = append(spans, model.FieldSpan{
				Field: indicatorMoney,
				Text:  text[loc[0]:loc[1]],
				Start: loc[0],
				End:   loc[1],
			})
			indicators++
		}
	}

	if loc := e.address.FindStringIndex(text); loc != nil {
		fields.PropertyAddress = strings.TrimSpace(text[loc[0]:loc[1]])
		spans = append(spans, model.FieldSpan{
			Field: indicatorAddress,
			Text:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
		indicators++
	}

	if loc := e.listing.FindStringSubmatchIndex(text); loc != nil {
		fields.ListingID = strings.ToUpper(text[loc[2]:loc[3]])
		spans = append(spans, model.FieldSpan{
			Field: indicatorListing,
			Text:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
		indicators++
	}

	if typ, loc := e.matchType(text); typ != "" {
		fields.TransactionType = typ
		spans = append(spans, model.FieldSpan{
			Field: indicatorType,
			Text:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
		indicators++
	}

	if e.closing.MatchString(text) {
		indicators++
		if loc := e.dates.FindStringIndex(text); loc != nil {
			fields.ClosingDate = text[loc[0]:loc[1]]
			spans = append(spans, model.FieldSpan{
				Field: indicatorClosing,
				Text:  text[loc[0]:loc[1]],
				Start: loc[0],
				End:   loc[1],
			})
		}
	}

	if indicators < minIndicators {
		return nil
	}

	return &model.Candidate{
		CommunicationID: comm.ID,
		Method:          model.MethodPattern,
		Fields:          fields,
		Spans:           spans,
		Confidence:      confidenceForIndicators(indicators),
	}
}

// matchType returns the first transaction type whose keyword group matches.
// Rules are checked in declaration order, so more specific deal language
// wins over generic rental vocabulary.
func (e *Extractor) matchType(text string) (model.TransactionType, []int) {
	for _, rule := range e.types {
		if loc := rule.re.FindStringIndex(text); loc != nil {
			return rule.typ, loc
		}
	}
	return "", nil
}
