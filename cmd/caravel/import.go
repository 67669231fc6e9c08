package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/caravelhq/caravel/internal/model"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import communications from a JSON file",
		Long: `Load communications into the local store from a JSON array. Each entry
needs an id, thread_id, sender, body, and timestamp. Already-imported ids
are skipped; communications are immutable once ingested.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

// importedCommunication is the on-disk import format.
type importedCommunication struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	var imported []importedCommunication
	if err := json.Unmarshal(data, &imported); err != nil {
		return fmt.Errorf("failed to parse import file: %w", err)
	}
	if len(imported) == 0 {
		cmd.Println("Nothing to import.")
		return nil
	}

	comms := make([]model.Communication, 0, len(imported))
	for _, in := range imported {
		comms = append(comms, model.Communication{
			ID:         in.ID,
			ThreadID:   in.ThreadID,
			Sender:     in.Sender,
			Recipients: in.Recipients,
			Body:       in.Body,
			Timestamp:  in.Timestamp,
		})
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveCommunications(ctx, comms); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	cmd.Printf("Imported %d communication(s).\n", len(comms))
	return nil
}
