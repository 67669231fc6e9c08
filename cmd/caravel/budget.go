package main

import (
	"github.com/spf13/cobra"
)

func budgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "budget",
		Short: "Show the inference budget window",
		RunE:  runBudget,
	}
}

func runBudget(cmd *cobra.Command, _ []string) error {
	gate, err := initGate()
	if err != nil {
		return err
	}

	status := gate.Status()
	cmd.Printf("Period:    %s to %s\n",
		status.PeriodStart.Format("2006-01-02"),
		status.PeriodEnd.Format("2006-01-02"))
	cmd.Printf("Limit:     %d tokens\n", status.Limit)
	cmd.Printf("Consumed:  %d tokens\n", status.Consumed)
	cmd.Printf("Remaining: %d tokens\n", status.Remaining)

	return nil
}
