package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"loungebackend/internal/logger"
)

// SQLite connection settings. A single writer keeps snapshot writes ordered.
const (
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = time.Hour
	connMaxIdleTime = time.Minute * 15
	queryTimeout    = time.Second * 30
	openRetries     = 3
)

const TimeFormat = time.RFC3339

const snapshotTableSchema = `
    CREATE TABLE IF NOT EXISTS kv_snapshots (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );`

// SQLiteStore keeps each snapshot as one row of kv_snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// snapshot table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	db, err := openWithRetry(ctx, path, openRetries)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, snapshotTableSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func openWithRetry(ctx context.Context, path string, maxRetries int) (*sql.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			lastErr = err
			logger.LogWarn("Database connection attempt %d failed: %v", attempt, err)
		} else {
			db.SetMaxOpenConns(maxOpenConns)
			db.SetMaxIdleConns(maxIdleConns)
			db.SetConnMaxLifetime(connMaxLifetime)
			db.SetConnMaxIdleTime(connMaxIdleTime)

			pingCtx, cancel := context.WithTimeout(ctx, queryTimeout)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				if err := enablePragmas(ctx, db); err != nil {
					logger.LogWarn("Failed to enable some database optimizations: %v", err)
				}
				logger.LogInfo("Database connection established successfully (attempt %d)", attempt)
				return db, nil
			}

			lastErr = err
			logger.LogWarn("Database ping attempt %d failed: %v", attempt, err)
			db.Close()
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return nil, fmt.Errorf("failed to open database after %d attempts: %w", maxRetries, lastErr)
}

func enablePragmas(ctx context.Context, conn *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}

	var lastErr error
	for _, pragma := range pragmas {
		pctx, cancel := context.WithTimeout(ctx, time.Second*5)
		_, err := conn.ExecContext(pctx, pragma)
		cancel()

		if err != nil {
			logger.LogWarn("Failed to execute %s: %v", pragma, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_snapshots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_snapshots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), time.Now().UTC().Format(TimeFormat))
	if err != nil {
		logger.LogError("Database exec failed: key=%s, error=%v", key, err)
		return fmt.Errorf("database execution failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("database execution failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
