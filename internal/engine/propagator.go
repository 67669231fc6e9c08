package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/caravelhq/caravel/internal/service"
)

// Propagator links every communication in a conversation thread to one
// detected transaction. Propagation attempts on the same thread are
// serialized by a per-thread lock; different threads proceed in parallel.
type Propagator struct {
	store   service.Storage
	logger  *slog.Logger
	threads map[string]*sync.Mutex
	mu      sync.Mutex
}

// NewPropagator creates a thread propagator over the given store.
func NewPropagator(store service.Storage, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{
		store:   store,
		logger:  logger,
		threads: make(map[string]*sync.Mutex),
	}
}

// threadLock returns the mutex guarding one thread's link state.
func (p *Propagator) threadLock(threadID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		p.threads[threadID] = lock
	}
	return lock
}

// Propagate links all communications in threadID, other than the source, to
// transactionID. Communications with no link are linked; those already
// linked to transactionID are left alone; those linked to a different
// transaction are skipped with a conflict note and never overwritten. The
// operation is idempotent and safe to re-run as new communications arrive.
func (p *Propagator) Propagate(ctx context.Context, transactionID, sourceCommunicationID, threadID string) (service.PropagationResult, error) {
	var result service.PropagationResult

	lock := p.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	comms, err := p.store.GetThreadCommunications(ctx, threadID)
	if err != nil {
		return result, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	// Partition the thread: the set needing a link is everything minus the
	// source, minus already-correctly-linked, minus conflicts.
	for _, comm := range comms {
		if comm.ID == sourceCommunicationID {
			continue
		}

		switch {
		case comm.LinkedTo(transactionID):
			// Already linked to this transaction; nothing to do.

		case comm.IsLinked():
			result.SkippedIDs = append(result.SkippedIDs, service.SkippedLink{
				CommunicationID: comm.ID,
				ExistingID:      *comm.LinkedTransactionID,
				Note:            fmt.Sprintf("already linked to transaction %s", *comm.LinkedTransactionID),
			})
			p.logger.Info("propagation conflict, keeping existing link",
				"communication_id", comm.ID,
				"existing_transaction", *comm.LinkedTransactionID,
				"new_transaction", transactionID)

		default:
			if err := p.store.SetLinkedTransaction(ctx, comm.ID, transactionID); err != nil {
				return result, fmt.Errorf("failed to link communication %s: %w", comm.ID, err)
			}
			result.LinkedIDs = append(result.LinkedIDs, comm.ID)
		}
	}

	p.logger.Debug("thread propagation complete",
		"thread_id", threadID,
		"transaction_id", transactionID,
		"linked", len(result.LinkedIDs),
		"skipped", len(result.SkippedIDs))

	return result, nil
}
