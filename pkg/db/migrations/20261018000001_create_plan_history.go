package migrations

import (
	"database/sql"

	"github.com/jingkaihe/plugdoc/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261018000001CreatePlanHistory creates the plan_history table.
func Migration20261018000001CreatePlanHistory() db.Migration {
	return db.Migration{
		Version:     20261018000001,
		Description: "Create plan_history table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS plan_history (
					id TEXT PRIMARY KEY,
					command TEXT NOT NULL,
					arguments TEXT NOT NULL DEFAULT '',
					path TEXT NOT NULL,
					body TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create plan_history table")
			}

			if _, err := tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_plan_history_created_at
				ON plan_history(created_at DESC)
			`); err != nil {
				return errors.Wrap(err, "failed to create created_at index")
			}

			return nil
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS plan_history")
			return errors.Wrap(err, "failed to drop plan_history table")
		},
	}
}
