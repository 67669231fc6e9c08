package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/caravelhq/caravel/internal/budget"
	"github.com/caravelhq/caravel/internal/model"
)

// Outcome classifies the result of one escalation attempt.
type Outcome string

// Escalation outcomes. Skipped and Failed are normal pipeline conditions,
// not errors: the caller proceeds with the pattern-only candidate.
const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Result is the typed outcome of Escalate. Candidate is non-nil only when
// Outcome is Completed and the provider found a transaction; a Completed
// result with a nil candidate means the provider decided the communication
// is not a transaction.
type Result struct {
	Err        error
	Candidate  *model.Candidate
	Outcome    Outcome
	TokensUsed int64
}

// Escalator invokes the external inference provider under a timeout, only
// when the budget gate grants a reservation. All failure paths are
// represented in the Result; Escalate never panics and never lets a provider
// error propagate.
type Escalator struct {
	client        Client
	limiter       *rateLimiter
	logger        *slog.Logger
	providerID    string
	promptVersion string
	timeout       time.Duration
	maxTokens     int
}

// NewEscalator creates an escalator around a provider client.
func NewEscalator(cfg Config, logger *slog.Logger) (*Escalator, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return newEscalatorWithClient(cfg, client, logger), nil
}

// newEscalatorWithClient supports injecting a mock client in tests.
func newEscalatorWithClient(cfg Config, client Client, logger *slog.Logger) *Escalator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 300
	}
	promptVersion := cfg.PromptVersion
	if promptVersion == "" {
		promptVersion = DefaultPromptVersion
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Escalator{
		client:        client,
		limiter:       newRateLimiter(cfg.RateLimit),
		logger:        logger,
		providerID:    cfg.ProviderID(),
		promptVersion: promptVersion,
		timeout:       timeout,
		maxTokens:     maxTokens,
	}
}

// ProviderID identifies the underlying provider/model for feedback records.
func (e *Escalator) ProviderID() string { return e.providerID }

// PromptVersion identifies the extraction prompt for feedback records.
func (e *Escalator) PromptVersion() string { return e.promptVersion }

// Close releases the escalator's rate limiter.
func (e *Escalator) Close() { e.limiter.Close() }

// estimateCost sizes a reservation for one call: a rough chars-per-token
// estimate of the prompt plus the response ceiling.
func (e *Escalator) estimateCost(prompt string) int64 {
	return int64(len(prompt)/4 + e.maxTokens)
}

// Escalate runs one budget-gated provider call over sanitized text. The
// reservation is reconciled on every path: committed with actual tokens when
// the provider billed anything, released in full when nothing was sent or
// billed.
func (e *Escalator) Escalate(ctx context.Context, communicationID, sanitized string, gate *budget.Gate) Result {
	prompt := buildExtractionPrompt(sanitized)
	estimated := e.estimateCost(prompt)

	if !gate.TryReserve(estimated) {
		e.logger.Debug("escalation skipped, budget exhausted",
			"communication_id", communicationID,
			"estimated_cost", estimated)
		return Result{Outcome: OutcomeSkipped}
	}

	if err := e.limiter.wait(ctx); err != nil {
		// Nothing was sent; return the full reservation.
		gate.Release(estimated)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.Complete(callCtx, prompt, e.maxTokens)
	if err != nil {
		// A timeout or provider error may still have been partially
		// billed; commit whatever the provider reported, otherwise
		// release the reservation.
		if resp.TokensUsed > 0 {
			gate.Commit(estimated, resp.TokensUsed)
		} else {
			gate.Release(estimated)
		}
		e.logger.Warn("escalation failed",
			"communication_id", communicationID,
			"provider", e.providerID,
			"error", err)
		return Result{Outcome: OutcomeFailed, TokensUsed: resp.TokensUsed, Err: err}
	}

	gate.Commit(estimated, resp.TokensUsed)

	candidate, err := parseCandidate(communicationID, resp.ResultJSON)
	if err != nil {
		e.logger.Warn("escalation returned malformed result",
			"communication_id", communicationID,
			"provider", e.providerID,
			"error", err)
		return Result{Outcome: OutcomeFailed, TokensUsed: resp.TokensUsed, Err: err}
	}

	return Result{
		Outcome:    OutcomeCompleted,
		Candidate:  candidate,
		TokensUsed: resp.TokensUsed,
	}
}
