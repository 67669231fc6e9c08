package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/cli"
	"github.com/caravelhq/caravel/internal/feedback"
	"github.com/caravelhq/caravel/internal/model"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Interactively review pending transactions",
		Long: `Walk through pending detected transactions one at a time and confirm,
edit, or reject each. Every disposition is recorded in the feedback log,
exactly as with the feedback command. Skipped transactions stay pending.`,
		RunE: runReview,
	}

	cmd.Flags().Int("limit", 0, "review at most this many transactions (0 = all)")

	return cmd
}

func runReview(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	handler := cli.NewInterruptHandler(cmd.OutOrStdout())
	ctx := handler.HandleInterrupts(cmd.Context())

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	pending, err := store.ListTransactions(ctx, model.StatusPending, limit)
	if err != nil {
		return fmt.Errorf("failed to load pending transactions: %w", err)
	}
	if len(pending) == 0 {
		cmd.Println("Nothing to review.")
		return nil
	}

	providerID, promptVersion := providerIdentity()
	recorder := feedback.NewRecorder(store, slog.Default())
	prompter := cli.NewReviewPrompter(os.Stdin, cmd.OutOrStdout())
	prompter.SetTotal(len(pending))

	for i := range pending {
		disposition, err := prompter.ReviewTransaction(ctx, &pending[i])
		if err != nil {
			if handler.WasInterrupted() || errors.Is(err, context.Canceled) || errors.Is(err, cli.ErrInputCancelled) {
				break
			}
			return fmt.Errorf("review failed: %w", err)
		}

		if disposition.Quit {
			break
		}
		if disposition.Skipped {
			continue
		}

		if err := recorder.Record(ctx, disposition.TransactionID, disposition.Action,
			disposition.Corrections, providerID, promptVersion); err != nil {
			return fmt.Errorf("failed to record disposition for %s: %w", disposition.TransactionID, err)
		}
	}

	prompter.ShowCompletion()
	return nil
}
