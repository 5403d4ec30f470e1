package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/plugdoc/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenAndMigrate(ctx, filepath.Join(t.TempDir(), "plans.db"), All())
	require.NoError(t, err)
	defer conn.Close()

	runner := db.NewMigrationRunner(conn)
	versions, err := runner.GetAppliedVersions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{20261018000001, 20261018000002}, versions)

	_, err = conn.Exec(`INSERT INTO plan_history (id, command, arguments, path, body, created_at, step_count)
		VALUES ('p1', 'plan_workflow', 'billing', '/tmp/PLAN.md', '{}', CURRENT_TIMESTAMP, 3)`)
	require.NoError(t, err)

	require.NoError(t, runner.Rollback(ctx, All()))
	require.NoError(t, runner.Rollback(ctx, All()))

	var count int
	err = conn.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='plan_history'")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
