// Package migrations holds the plan history schema migrations.
package migrations

import "github.com/jingkaihe/plugdoc/pkg/db"

// All returns every migration in version order
func All() []db.Migration {
	return []db.Migration{
		Migration20261018000001CreatePlanHistory(),
		Migration20261018000002AddPlanHistoryStepCount(),
	}
}
