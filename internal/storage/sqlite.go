// Package storage provides the SQLite persistence layer for communications,
// transactions, and the feedback log.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/caravelhq/caravel/internal/common"
	"github.com/caravelhq/caravel/internal/service"
)

// SQLiteStorage implements the service.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// storeRetryOpts retries a transient storage failure once, then surfaces it.
var storeRetryOpts = service.RetryOptions{
	MaxAttempts:  2,
	InitialDelay: 50 * time.Millisecond,
}

// withRetry wraps one store operation with the retry-once policy. Not-found
// results are never retried.
func (s *SQLiteStorage) withRetry(ctx context.Context, op func() error) error {
	return common.WithRetry(ctx, func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, ErrLinkConflict) {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		if isTransient(err) {
			return &common.RetryableError{
				Err:       fmt.Errorf("%w: %v", common.ErrStoreTransient, err),
				Retryable: true,
			}
		}
		return err
	}, storeRetryOpts)
}

// isTransient reports whether an error is a retryable SQLite contention
// failure.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
