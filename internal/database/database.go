package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"whatsflow/internal/migrations"
	"whatsflow/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed store for accounts, conversations, messages,
// rules and flows.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to ping database: %w", err))
	}

	if _, err := migrations.Apply(context.Background(), db); err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to initialize schema: %w", err))
	}

	enc, err := NewEncryptor()
	if err != nil {
		return nil, closeOnError(db, fmt.Errorf("failed to initialize encryptor: %w", err))
	}

	return &Database{db: db, encryptor: enc, now: func() time.Time { return time.Now().UTC() }}, nil
}

func closeOnError(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (close error: %v)", err, closeErr)
	}
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection for health reporting.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// CleanupOldMessages deletes messages older than retentionDays. Conversations
// are kept so the inbox and any flow position survive.
func (d *Database) CleanupOldMessages(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	cutoff := d.now().AddDate(0, 0, -retentionDays)

	var deleted int64
	err := retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, `DELETE FROM messages WHERE created_at < ?`, cutoff)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	}, "cleanup old messages")
	return deleted, err
}
