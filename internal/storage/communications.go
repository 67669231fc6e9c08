package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/caravelhq/caravel/internal/common"
	"github.com/caravelhq/caravel/internal/model"
)

// SaveCommunications inserts ingested communications. Already-known ids are
// ignored; communications are immutable once ingested.
func (s *SQLiteStorage) SaveCommunications(ctx context.Context, comms []model.Communication) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCommunications(comms); err != nil {
		return err
	}

	return s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO communications (
				id, thread_id, sender, recipients, body, timestamp, linked_transaction_id
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, comm := range comms {
			recipients, err := json.Marshal(comm.Recipients)
			if err != nil {
				return fmt.Errorf("failed to marshal recipients for %s: %w", comm.ID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				comm.ID,
				comm.ThreadID,
				comm.Sender,
				string(recipients),
				comm.Body,
				comm.Timestamp.UTC(),
				comm.LinkedTransactionID,
			); err != nil {
				return fmt.Errorf("failed to insert communication %s: %w", comm.ID, err)
			}
		}

		return tx.Commit()
	})
}

// GetCommunication retrieves one communication by id.
func (s *SQLiteStorage) GetCommunication(ctx context.Context, id string) (*model.Communication, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var comm *model.Communication
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, thread_id, sender, recipients, body, timestamp, linked_transaction_id
			FROM communications WHERE id = ?
		`, id)

		var err error
		comm, err = scanCommunication(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return comm, nil
}

// GetThreadCommunications retrieves every communication in a thread ordered
// by timestamp.
func (s *SQLiteStorage) GetThreadCommunications(ctx context.Context, threadID string) ([]model.Communication, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(threadID, "threadID"); err != nil {
		return nil, err
	}

	var comms []model.Communication
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, thread_id, sender, recipients, body, timestamp, linked_transaction_id
			FROM communications WHERE thread_id = ?
			ORDER BY timestamp ASC
		`, threadID)
		if err != nil {
			return fmt.Errorf("failed to query thread %s: %w", threadID, err)
		}
		defer func() { _ = rows.Close() }()

		comms = comms[:0]
		for rows.Next() {
			comm, err := scanCommunication(rows)
			if err != nil {
				return err
			}
			comms = append(comms, *comm)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return comms, nil
}

// SetLinkedTransaction links a communication to a transaction. The update is
// guarded: an existing link to a different transaction is never silently
// replaced, even under a race the caller's locking did not cover.
func (s *SQLiteStorage) SetLinkedTransaction(ctx context.Context, communicationID, transactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(communicationID, "communicationID"); err != nil {
		return err
	}
	if err := validateString(transactionID, "transactionID"); err != nil {
		return err
	}

	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE communications
			SET linked_transaction_id = ?
			WHERE id = ? AND (linked_transaction_id IS NULL OR linked_transaction_id = ?)
		`, transactionID, communicationID, transactionID)
		if err != nil {
			return fmt.Errorf("failed to link communication %s: %w", communicationID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			// Either the communication is missing or it is linked elsewhere.
			var existing sql.NullString
			row := s.db.QueryRowContext(ctx,
				`SELECT linked_transaction_id FROM communications WHERE id = ?`, communicationID)
			if scanErr := row.Scan(&existing); scanErr != nil {
				if errors.Is(scanErr, sql.ErrNoRows) {
					return fmt.Errorf("communication %s: %w", communicationID, common.ErrNotFound)
				}
				return fmt.Errorf("failed to inspect link state: %w", scanErr)
			}
			return fmt.Errorf("communication %s held by %s: %w", communicationID, existing.String, ErrLinkConflict)
		}
		return nil
	})
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommunication(row rowScanner) (*model.Communication, error) {
	var comm model.Communication
	var recipients string
	var linked sql.NullString
	var ts time.Time

	err := row.Scan(&comm.ID, &comm.ThreadID, &comm.Sender, &recipients, &comm.Body, &ts, &linked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("communication: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan communication: %w", err)
	}

	comm.Timestamp = ts.UTC()
	if err := json.Unmarshal([]byte(recipients), &comm.Recipients); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipients for %s: %w", comm.ID, err)
	}
	if linked.Valid && linked.String != "" {
		comm.LinkedTransactionID = &linked.String
	}

	return &comm, nil
}
