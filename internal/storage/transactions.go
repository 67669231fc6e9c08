package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/caravelhq/caravel/internal/common"
	"github.com/caravelhq/caravel/internal/model"
)

// CreateTransaction persists a newly detected transaction.
func (s *SQLiteStorage) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	var price any
	if txn.Fields.Price != nil {
		price = txn.Fields.Price.String()
	}

	return s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO transactions (
				id, status, source, confidence,
				property_address, transaction_type, price, listing_id, closing_date,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			string(txn.Status),
			string(txn.Source),
			txn.Confidence,
			txn.Fields.PropertyAddress,
			string(txn.Fields.TransactionType),
			price,
			txn.Fields.ListingID,
			txn.Fields.ClosingDate,
			txn.CreatedAt.UTC(),
			txn.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
		return nil
	})
}

// GetTransaction retrieves one transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var txn *model.Transaction
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, status, source, confidence,
				property_address, transaction_type, price, listing_id, closing_date,
				created_at, updated_at
			FROM transactions WHERE id = ?
		`, id)

		var err error
		txn, err = scanTransaction(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns transactions with the given status ordered oldest
// first, so review works through the backlog in detection order. A zero limit
// means no limit.
func (s *SQLiteStorage) ListTransactions(ctx context.Context, status model.TransactionStatus, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(string(status), "status"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, status, source, confidence,
			property_address, transaction_type, price, listing_id, closing_date,
			created_at, updated_at
		FROM transactions WHERE status = ?
		ORDER BY created_at ASC, id ASC
	`
	args := []any{string(status)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var txns []model.Transaction
	err := s.withRetry(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to list transactions: %w", err)
		}
		defer func() { _ = rows.Close() }()

		txns = txns[:0]
		for rows.Next() {
			txn, err := scanTransaction(rows)
			if err != nil {
				return err
			}
			txns = append(txns, *txn)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// GetTransactionByCommunication retrieves the transaction a communication is
// linked to, if any.
func (s *SQLiteStorage) GetTransactionByCommunication(ctx context.Context, communicationID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(communicationID, "communicationID"); err != nil {
		return nil, err
	}

	var txn *model.Transaction
	err := s.withRetry(ctx, func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT t.id, t.status, t.source, t.confidence,
				t.property_address, t.transaction_type, t.price, t.listing_id, t.closing_date,
				t.created_at, t.updated_at
			FROM transactions t
			JOIN communications c ON c.linked_transaction_id = t.id
			WHERE c.id = ?
		`, communicationID)

		var err error
		txn, err = scanTransaction(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// UpdateTransactionStatus records a user disposition on a transaction.
func (s *SQLiteStorage) UpdateTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?
		`, string(status), time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update transaction %s: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

// UpdateTransactionFields replaces a transaction's extracted field snapshot,
// typically with user corrections.
func (s *SQLiteStorage) UpdateTransactionFields(ctx context.Context, id string, fields model.TransactionFields) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	var price any
	if fields.Price != nil {
		price = fields.Price.String()
	}

	return s.withRetry(ctx, func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE transactions
			SET property_address = ?, transaction_type = ?, price = ?,
				listing_id = ?, closing_date = ?, updated_at = ?
			WHERE id = ?
		`,
			fields.PropertyAddress,
			string(fields.TransactionType),
			price,
			fields.ListingID,
			fields.ClosingDate,
			time.Now().UTC(),
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to update transaction fields %s: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
		}
		return nil
	})
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var status, source string
	var address, txnType, price, listingID, closingDate sql.NullString
	var createdAt, updatedAt time.Time

	err := row.Scan(&txn.ID, &status, &source, &txn.Confidence,
		&address, &txnType, &price, &listingID, &closingDate,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transaction: %w", common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Status = model.TransactionStatus(status)
	txn.Source = model.DetectionMethod(source)
	txn.CreatedAt = createdAt.UTC()
	txn.UpdatedAt = updatedAt.UTC()
	txn.Fields.PropertyAddress = address.String
	txn.Fields.TransactionType = model.TransactionType(txnType.String)
	txn.Fields.ListingID = listingID.String
	txn.Fields.ClosingDate = closingDate.String

	if price.Valid && price.String != "" {
		parsed, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse stored price %q: %w", price.String, err)
		}
		txn.Fields.Price = &parsed
	}

	return &txn, nil
}
