// Package db provides the SQLite plumbing behind plugdoc's plan history:
// opening a WAL-mode database and running timestamp-versioned migrations.
package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const openAttempts = 3

// Open opens or creates a SQLite database at dbPath. Opening is retried when
// another process holds the database lock.
func Open(ctx context.Context, dbPath string) (*sqlx.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	var db *sqlx.DB
	err := retry.Do(
		func() error {
			conn, err := sqlx.Open("sqlite", dbPath)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "failed to open database"))
			}
			if err := conn.PingContext(ctx); err != nil {
				conn.Close()
				return errors.Wrap(err, "failed to ping database")
			}
			if err := Configure(ctx, conn); err != nil {
				conn.Close()
				return errors.Wrap(err, "failed to configure database")
			}
			db = conn
			return nil
		},
		retry.Attempts(openAttempts),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(isBusy),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warn("database busy, retrying open")
		}),
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func isBusy(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// Configure sets up SQLite pragmas for WAL mode
func Configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	return VerifyConfiguration(db)
}

// OpenAndMigrate opens dbPath and applies all pending migrations
func OpenAndMigrate(ctx context.Context, dbPath string, migrations []Migration) (*sqlx.DB, error) {
	db, err := Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	if err := NewMigrationRunner(db).Run(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// VerifyConfiguration checks that WAL mode and foreign keys are active
func VerifyConfiguration(db *sqlx.DB) error {
	var journalMode string
	if err := db.Get(&journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("expected WAL mode, got %s", journalMode)
	}

	var foreignKeys string
	if err := db.Get(&foreignKeys, "PRAGMA foreign_keys"); err != nil {
		return errors.Wrap(err, "failed to query foreign keys")
	}
	if foreignKeys != "1" {
		return errors.Errorf("expected foreign keys ON, got %s", foreignKeys)
	}

	return nil
}
