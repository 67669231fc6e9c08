package engine

import (
	"context"

	"github.com/caravelhq/caravel/internal/budget"
	"github.com/caravelhq/caravel/internal/llm"
	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/redact"
)

// Extractor produces a local pattern candidate for a communication.
type Extractor interface {
	Extract(comm model.Communication) *model.Candidate
}

// Sanitizer masks PII before text leaves the process boundary.
type Sanitizer interface {
	Sanitize(text string) redact.Result
}

// Escalator runs the budget-gated inference tier.
type Escalator interface {
	Escalate(ctx context.Context, communicationID, sanitized string, gate *budget.Gate) llm.Result
	ProviderID() string
	PromptVersion() string
}
