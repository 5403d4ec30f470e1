package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := Open(context.Background(), filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func tableExists(t *testing.T, conn *sqlx.DB, name string) bool {
	t.Helper()
	var n int
	require.NoError(t, conn.Get(&n, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name))
	return n > 0
}

func TestOpenConfiguresPragmas(t *testing.T) {
	conn := openTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			require.NoError(t, conn.Get(&got, "PRAGMA "+tt.pragma))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, 1, conn.Stats().MaxOpenConnections)
	assert.NoError(t, VerifyConfiguration(conn))
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".plugdoc", "history", "plans.db")

	conn, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer conn.Close()

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenFailsWhenParentIsAFile(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(context.Background(), filepath.Join(blocker, "plans.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create database directory")
}

func TestVerifyConfigurationRejectsRollbackJournal(t *testing.T) {
	conn := openTestDB(t)

	_, err := conn.Exec("PRAGMA journal_mode=DELETE")
	require.NoError(t, err)

	err = VerifyConfiguration(conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected WAL mode")
}

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.db")
	migrations := []Migration{
		{
			Version:     20261018000001,
			Description: "create plans",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE plans (id TEXT PRIMARY KEY, command TEXT NOT NULL)")
				return err
			},
		},
	}

	conn, err := OpenAndMigrate(context.Background(), path, migrations)
	require.NoError(t, err)

	_, err = conn.Exec("INSERT INTO plans (id, command) VALUES ('p1', 'plan_workflow')")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// reopening applies nothing twice
	conn, err = OpenAndMigrate(context.Background(), path, migrations)
	require.NoError(t, err)
	defer conn.Close()

	var command string
	require.NoError(t, conn.Get(&command, "SELECT command FROM plans WHERE id = 'p1'"))
	assert.Equal(t, "plan_workflow", command)
}

func TestOpenAndMigrateReportsFailedMigration(t *testing.T) {
	migrations := []Migration{
		{
			Version:     20261018000001,
			Description: "broken",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("CREATE TABLE")
				return err
			},
		},
	}

	conn, err := OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "plans.db"), migrations)
	require.Error(t, err)
	assert.Nil(t, conn)
	assert.Contains(t, err.Error(), "failed to apply migration 20261018000001: broken")
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("sqlite_busy: another writer"), true},
		{errors.New("Database Is Locked"), true},
		{errors.New("no such table: plan_history"), false},
		{errors.New("disk I/O error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, isBusy(tt.err))
		})
	}
}
