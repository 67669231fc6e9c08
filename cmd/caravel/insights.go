package main

import (
	"context"
	"sort"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/feedback"
)

func insightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Report detection accuracy from the feedback log",
		Long: `Compute acceptance rates by inference provider and by prompt version,
and surface rejection reasons that recur often enough to indicate a
systematic detection defect rather than noise.`,
		RunE: runInsights,
	}

	cmd.Flags().Bool("errors", false, "only show systematic error patterns")

	return cmd
}

func runInsights(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	analyzer := feedback.NewAnalyzer(store)
	errorsOnly, _ := cmd.Flags().GetBool("errors")

	if !errorsOnly {
		byProvider, err := analyzer.AccuracyByProvider(ctx)
		if err != nil {
			return err
		}
		printAccuracy(cmd, "Accuracy by provider", byProvider)

		byPrompt, err := analyzer.AccuracyByPromptVersion(ctx)
		if err != nil {
			return err
		}
		printAccuracy(cmd, "Accuracy by prompt version", byPrompt)
	}

	systematic, err := analyzer.IdentifySystematicErrors(ctx)
	if err != nil {
		return err
	}

	cmd.Println("Systematic errors:")
	if len(systematic) == 0 {
		cmd.Println("  none above threshold")
		return nil
	}
	for _, e := range systematic {
		cmd.Printf("  %dx %q\n      %s\n", e.Frequency, e.Pattern, e.Suggestion)
	}

	return nil
}

func printAccuracy(cmd *cobra.Command, title string, accuracy map[string]feedback.Accuracy) {
	cmd.Printf("%s:\n", title)
	if len(accuracy) == 0 {
		cmd.Println("  no feedback recorded")
		return
	}

	keys := make([]string, 0, len(accuracy))
	for k := range accuracy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		acc := accuracy[k]
		cmd.Printf("  %-28s %3d approved / %3d rejected (%.0f%%)\n",
			k, acc.Approvals, acc.Rejections, acc.Rate*100)
	}
}
