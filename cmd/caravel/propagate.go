package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/engine"
	"github.com/caravelhq/caravel/internal/service"
)

func propagateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "propagate <transaction-id> <communication-id>",
		Short: "Link a whole conversation thread to a detected transaction",
		Long: `Link every communication in the source communication's thread to the
given transaction. Communications already linked to a different transaction
are skipped, never overwritten; re-running is safe as new messages arrive.`,
		Args: cobra.ExactArgs(2),
		RunE: runPropagate,
	}
}

func runPropagate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	transactionID, communicationID := args[0], args[1]

	comm, err := store.GetCommunication(ctx, communicationID)
	if err != nil {
		return fmt.Errorf("failed to load communication: %w", err)
	}

	return propagateThread(ctx, cmd, store, transactionID, communicationID, comm.ThreadID)
}

func propagateThread(ctx context.Context, cmd *cobra.Command, store service.Storage, transactionID, sourceID, threadID string) error {
	propagator := engine.NewPropagator(store, slog.Default())

	result, err := propagator.Propagate(ctx, transactionID, sourceID, threadID)
	if err != nil {
		return fmt.Errorf("propagation failed: %w", err)
	}

	cmd.Printf("Linked %d communication(s) in thread %s.\n", len(result.LinkedIDs), threadID)
	if len(result.SkippedIDs) > 0 {
		cmd.Printf("Some thread messages could not be linked (conflict):\n")
		for _, skipped := range result.SkippedIDs {
			cmd.Printf("  %s: %s\n", skipped.CommunicationID, skipped.Note)
		}
	}

	return nil
}
