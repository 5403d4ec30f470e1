package migrations

import (
	"database/sql"

	"github.com/jingkaihe/plugdoc/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261018000002AddPlanHistoryStepCount records how many steps each plan had,
// plus an index for listing by command.
func Migration20261018000002AddPlanHistoryStepCount() db.Migration {
	return db.Migration{
		Version:     20261018000002,
		Description: "Add step_count to plan_history",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec("ALTER TABLE plan_history ADD COLUMN step_count INTEGER NOT NULL DEFAULT 0"); err != nil {
				return errors.Wrap(err, "failed to add step_count column")
			}
			if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_plan_history_command ON plan_history(command, created_at DESC)"); err != nil {
				return errors.Wrap(err, "failed to create command index")
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			if _, err := tx.Exec("DROP INDEX IF EXISTS idx_plan_history_command"); err != nil {
				return errors.Wrap(err, "failed to drop command index")
			}
			_, err := tx.Exec("ALTER TABLE plan_history DROP COLUMN step_count")
			return errors.Wrap(err, "failed to drop step_count column")
		},
	}
}
