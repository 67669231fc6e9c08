package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/llm"
)

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <communication-id>",
		Short: "Run transaction detection on one communication",
		Long: `Run the hybrid detection pipeline on a stored communication:
local pattern extraction always runs, and the inference tier is consulted
when the monthly budget allows it.`,
		Args: cobra.ExactArgs(1),
		RunE: runDetect,
	}

	cmd.Flags().Bool("propagate", false, "also link the rest of the thread on detection")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	detector, cleanup, err := initDetector(store)
	if err != nil {
		return err
	}
	defer cleanup()

	communicationID := args[0]
	detection, err := detector.Detect(ctx, communicationID)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if detection == nil {
		cmd.Println("No transaction detected.")
		return nil
	}

	if detection.Escalation == llm.OutcomeFailed {
		cmd.Println("Detection unavailable, pattern-only result shown.")
	}

	cand := detection.Candidate
	cmd.Printf("Transaction %s (%s, confidence %.2f)\n", detection.TransactionID, cand.Method, cand.Confidence)
	if cand.Fields.PropertyAddress != "" {
		cmd.Printf("  Address:  %s\n", cand.Fields.PropertyAddress)
	}
	if cand.Fields.TransactionType != "" {
		cmd.Printf("  Type:     %s\n", cand.Fields.TransactionType)
	}
	if cand.Fields.Price != nil {
		cmd.Printf("  Price:    $%s\n", cand.Fields.Price.StringFixed(2))
	}
	if cand.Fields.ListingID != "" {
		cmd.Printf("  Listing:  %s\n", cand.Fields.ListingID)
	}
	if cand.Fields.ClosingDate != "" {
		cmd.Printf("  Closing:  %s\n", cand.Fields.ClosingDate)
	}
	for _, conflict := range cand.Conflicts {
		cmd.Printf("  Conflict on %s: pattern=%q llm=%q\n", conflict.Field, conflict.PatternValue, conflict.LLMValue)
	}

	if propagate, _ := cmd.Flags().GetBool("propagate"); propagate {
		comm, err := store.GetCommunication(ctx, communicationID)
		if err != nil {
			return fmt.Errorf("failed to reload communication: %w", err)
		}
		return propagateThread(ctx, cmd, store, detection.TransactionID, communicationID, comm.ThreadID)
	}

	return nil
}
