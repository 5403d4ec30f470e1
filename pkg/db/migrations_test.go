package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTable(name string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec("CREATE TABLE " + name + " (id INTEGER PRIMARY KEY)")
		return err
	}
}

func dropTable(name string) func(*sql.Tx) error {
	return func(tx *sql.Tx) error {
		_, err := tx.Exec("DROP TABLE " + name)
		return err
	}
}

func historyMigrations() []Migration {
	return []Migration{
		{
			Version:     20261018000002,
			Description: "add step count",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec("ALTER TABLE history ADD COLUMN step_count INTEGER NOT NULL DEFAULT 0")
				return err
			},
		},
		{
			Version:     20261018000001,
			Description: "create history",
			Up:          createTable("history"),
			Down:        dropTable("history"),
		},
	}
}

func TestMigrationRunnerAppliesInVersionOrder(t *testing.T) {
	conn := openTestDB(t)
	runner := NewMigrationRunner(conn)
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, historyMigrations()))

	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20261018000001, 20261018000002}, versions)

	_, err = conn.Exec("INSERT INTO history (id, step_count) VALUES (1, 4)")
	require.NoError(t, err)

	var description string
	require.NoError(t, conn.Get(&description, "SELECT description FROM schema_migrations WHERE version = 20261018000002"))
	assert.Equal(t, "add step count", description)
}

func TestMigrationRunnerIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	runner := NewMigrationRunner(conn)
	ctx := context.Background()

	calls := 0
	migrations := []Migration{{
		Version:     20261018000001,
		Description: "create history",
		Up: func(tx *sql.Tx) error {
			calls++
			return createTable("history")(tx)
		},
	}}

	for range 3 {
		require.NoError(t, runner.Run(ctx, migrations))
	}
	assert.Equal(t, 1, calls)

	pending, err := runner.Pending(ctx, migrations)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestMigrationRunnerPending(t *testing.T) {
	conn := openTestDB(t)
	runner := NewMigrationRunner(conn)
	ctx := context.Background()
	all := historyMigrations()

	pending, err := runner.Pending(ctx, all)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(20261018000001), pending[0].Version)

	require.NoError(t, runner.Run(ctx, all[1:]))

	pending, err = runner.Pending(ctx, all)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "add step count", pending[0].Description)
}

func TestMigrationRunnerRejectsDuplicateVersions(t *testing.T) {
	runner := NewMigrationRunner(openTestDB(t))

	err := runner.Run(context.Background(), []Migration{
		{Version: 20261018000001, Description: "create history", Up: createTable("history")},
		{Version: 20261018000001, Description: "create plans", Up: createTable("plans")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 20261018000001")
}

func TestMigrationRunnerFailureRollsBackTransaction(t *testing.T) {
	conn := openTestDB(t)
	runner := NewMigrationRunner(conn)
	ctx := context.Background()

	err := runner.Run(ctx, []Migration{{
		Version:     20261018000001,
		Description: "half applied",
		Up: func(tx *sql.Tx) error {
			if err := createTable("history")(tx); err != nil {
				return err
			}
			return errors.New("boom")
		},
	}})
	require.Error(t, err)

	assert.False(t, tableExists(t, conn, "history"))
	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestMigrationRunnerRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts latest", func(t *testing.T) {
		conn := openTestDB(t)
		runner := NewMigrationRunner(conn)
		migrations := []Migration{
			{Version: 20261018000001, Description: "create history", Up: createTable("history"), Down: dropTable("history")},
			{Version: 20261018000002, Description: "create notes", Up: createTable("notes"), Down: dropTable("notes")},
		}
		require.NoError(t, runner.Run(ctx, migrations))

		require.NoError(t, runner.Rollback(ctx, migrations))

		assert.True(t, tableExists(t, conn, "history"))
		assert.False(t, tableExists(t, conn, "notes"))
		versions, err := runner.GetAppliedVersions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int64{20261018000001}, versions)
	})

	t.Run("nothing applied", func(t *testing.T) {
		runner := NewMigrationRunner(openTestDB(t))
		assert.NoError(t, runner.Rollback(ctx, historyMigrations()))
	})

	t.Run("no down function", func(t *testing.T) {
		runner := NewMigrationRunner(openTestDB(t))
		all := historyMigrations()
		require.NoError(t, runner.Run(ctx, all))

		err := runner.Rollback(ctx, all)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no rollback function")
	})

	t.Run("unknown version", func(t *testing.T) {
		runner := NewMigrationRunner(openTestDB(t))
		all := historyMigrations()
		require.NoError(t, runner.Run(ctx, all))

		err := runner.Rollback(ctx, all[1:])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found in provided migrations")
	})
}
