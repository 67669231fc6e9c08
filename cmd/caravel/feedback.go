package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/feedback"
	"github.com/caravelhq/caravel/internal/model"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <transaction-id>",
		Short: "Record a user disposition on a detected transaction",
		Long: `Record whether a detection was right. Confirmations and edits mark the
transaction confirmed; rejections mark it rejected. Every disposition is
appended to the feedback log for accuracy analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: runFeedback,
	}

	cmd.Flags().String("action", "", "disposition: confirm, edit, or reject (required)")
	cmd.Flags().String("reason", "", "free-text reason, recorded with rejections")
	cmd.Flags().StringToString("set", nil, "field corrections for edits, e.g. --set property_address='12 Oak St'")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func runFeedback(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	action := model.FeedbackAction(strings.ToLower(cmd.Flag("action").Value.String()))
	if !action.Valid() {
		return fmt.Errorf("invalid action %q: must be confirm, edit, or reject", action)
	}

	reason, _ := cmd.Flags().GetString("reason")
	fields, _ := cmd.Flags().GetStringToString("set")

	var corrections *model.Corrections
	if reason != "" || len(fields) > 0 {
		corrections = &model.Corrections{Reason: reason, Fields: fields}
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	providerID, promptVersion := providerIdentity()
	recorder := feedback.NewRecorder(store, slog.Default())

	if err := recorder.Record(ctx, args[0], action, corrections, providerID, promptVersion); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	cmd.Printf("Recorded %s for transaction %s.\n", action, args[0])
	return nil
}
