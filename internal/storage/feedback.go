package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/caravelhq/caravel/internal/model"
	"github.com/caravelhq/caravel/internal/service"
)

// AppendFeedback appends one immutable feedback record. There is no update
// or delete path for feedback.
func (s *SQLiteStorage) AppendFeedback(ctx context.Context, record *model.FeedbackRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFeedback(record); err != nil {
		return err
	}

	var corrections any
	if record.Corrections != nil {
		data, err := json.Marshal(record.Corrections)
		if err != nil {
			return fmt.Errorf("failed to marshal corrections: %w", err)
		}
		corrections = string(data)
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO feedback_records (
				transaction_id, action, corrections, provider_id, prompt_version, created_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`,
			record.TransactionID,
			string(record.Action),
			corrections,
			record.ProviderID,
			record.PromptVersion,
			createdAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to append feedback: %w", err)
		}
		if id, err := result.LastInsertId(); err == nil {
			record.ID = id
		}
		return nil
	})
}

// QueryFeedback returns feedback records matching the filter, newest first.
// Corrections are parsed once here; the analyzer never sees raw JSON.
func (s *SQLiteStorage) QueryFeedback(ctx context.Context, filter service.FeedbackFilter) ([]model.FeedbackRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, transaction_id, action, corrections, provider_id, prompt_version, created_at
		FROM feedback_records
	`
	var clauses []string
	var args []any

	if filter.TransactionID != "" {
		clauses = append(clauses, "transaction_id = ?")
		args = append(args, filter.TransactionID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.ProviderID != "" {
		clauses = append(clauses, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.PromptVersion != "" {
		clauses = append(clauses, "prompt_version = ?")
		args = append(args, filter.PromptVersion)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var records []model.FeedbackRecord
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to query feedback: %w", err)
		}
		defer func() { _ = rows.Close() }()

		records = records[:0]
		for rows.Next() {
			var record model.FeedbackRecord
			var action string
			var corrections, providerID, promptVersion sql.NullString
			var createdAt time.Time

			if err := rows.Scan(&record.ID, &record.TransactionID, &action,
				&corrections, &providerID, &promptVersion, &createdAt); err != nil {
				return fmt.Errorf("failed to scan feedback record: %w", err)
			}

			record.Action = model.FeedbackAction(action)
			record.ProviderID = providerID.String
			record.PromptVersion = promptVersion.String
			record.CreatedAt = createdAt.UTC()

			if corrections.Valid && corrections.String != "" {
				var parsed model.Corrections
				if err := json.Unmarshal([]byte(corrections.String), &parsed); err != nil {
					return fmt.Errorf("failed to parse corrections for record %d: %w", record.ID, err)
				}
				record.Corrections = &parsed
			}

			records = append(records, record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
