package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caravelhq/caravel/internal/budget"
	"github.com/caravelhq/caravel/internal/llm"
	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/service"
)

// Detection is the outcome of one successful detect call.
type Detection struct {
	Candidate     model.Candidate
	TransactionID string
	Escalation    llm.Outcome
}

// Detector orchestrates the hybrid detection pipeline for one communication:
// pattern extraction always runs; escalation runs only when the budget gate
// grants it; the two results are aggregated and the winner persisted as a
// transaction link.
type Detector struct {
	store     service.Storage
	extractor Extractor
	sanitizer Sanitizer
	escalator Escalator
	gate      *budget.Gate
	logger    *slog.Logger
}

// NewDetector creates a detector. The escalator may be nil, which disables
// the inference tier entirely (pattern-only operation).
func NewDetector(store service.Storage, extractor Extractor, sanitizer Sanitizer, escalator Escalator, gate *budget.Gate, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		store:     store,
		extractor: extractor,
		sanitizer: sanitizer,
		escalator: escalator,
		gate:      gate,
		logger:    logger,
	}
}

// Detect runs the pipeline for one communication. A (nil, nil) return means
// no candidate was found, which is a normal outcome. Detection is idempotent
// for an unchanged communication under unchanged budget state: a
// communication that is already linked keeps its transaction id.
func (d *Detector) Detect(ctx context.Context, communicationID string) (*Detection, error) {
	comm, err := d.store.GetCommunication(ctx, communicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load communication %s: %w", communicationID, err)
	}

	patternCand := d.extractor.Extract(*comm)

	var llmCand *model.Candidate
	escalation := llm.OutcomeSkipped
	if d.escalator != nil {
		sanitized := d.sanitizer.Sanitize(comm.Body)
		res := d.escalator.Escalate(ctx, comm.ID, sanitized.Sanitized, d.gate)
		escalation = res.Outcome

		switch res.Outcome {
		case llm.OutcomeCompleted:
			llmCand = res.Candidate
		case llm.OutcomeSkipped:
			d.logger.Debug("escalation skipped, proceeding pattern-only",
				"communication_id", comm.ID)
		case llm.OutcomeFailed:
			d.logger.Warn("escalation failed, proceeding pattern-only",
				"communication_id", comm.ID,
				"error", res.Err)
		}
	}

	final, ok := Aggregate(patternCand, llmCand)
	if !ok {
		d.logger.Debug("no candidate detected", "communication_id", comm.ID)
		return nil, nil
	}

	transactionID, err := d.persist(ctx, comm, final)
	if err != nil {
		return nil, err
	}

	return &Detection{
		Candidate:     *final,
		TransactionID: transactionID,
		Escalation:    escalation,
	}, nil
}

// persist records the winning candidate. A communication that already
// carries a link keeps it; otherwise a new pending transaction is created
// and the source communication linked to it.
func (d *Detector) persist(ctx context.Context, comm *model.Communication, final *model.Candidate) (string, error) {
	if comm.IsLinked() {
		return *comm.LinkedTransactionID, nil
	}

	now := time.Now().UTC()
	txn := &model.Transaction{
		ID:         uuid.NewString(),
		Status:     model.StatusPending,
		Source:     final.Method,
		Fields:     final.Fields,
		Confidence: final.Confidence,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := d.store.CreateTransaction(ctx, txn); err != nil {
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := d.store.SetLinkedTransaction(ctx, comm.ID, txn.ID); err != nil {
		return "", fmt.Errorf("failed to link source communication: %w", err)
	}

	d.logger.Info("transaction detected",
		"communication_id", comm.ID,
		"transaction_id", txn.ID,
		"method", final.Method,
		"confidence", final.Confidence)

	return txn.ID, nil
}
