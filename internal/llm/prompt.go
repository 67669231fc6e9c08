package llm

import "fmt"

// DefaultPromptVersion identifies the extraction prompt shipped with this
// build. Feedback records carry it so accuracy can be compared across prompt
// revisions.
const DefaultPromptVersion = "v2"

const systemPrompt = "You are a real-estate transaction detector. " +
	"Given a sanitized communication, decide whether it concerns a real-world " +
	"real-estate transaction and extract structured fields. Respond with JSON " +
	"only, no prose."

const extractionTemplate = `Analyze the following communication and respond with exactly one JSON object:

{
  "is_transaction": <bool>,
  "confidence": <0.0-1.0>,
  "transaction_type": "purchase" | "sale" | "lease" | "rental" | "",
  "property_address": "<string or empty>",
  "price": "<numeric string or empty>",
  "listing_id": "<string or empty>",
  "closing_date": "<string or empty>"
}

Communication:
---
%s
---`

// buildExtractionPrompt renders the extraction prompt for sanitized text.
func buildExtractionPrompt(sanitized string) string {
	return fmt.Sprintf(extractionTemplate, sanitized)
}
