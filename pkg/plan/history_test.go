package plan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := OpenHistory(context.Background(), filepath.Join(t.TempDir(), "plugdoc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistoryRecordAndGet(t *testing.T) {
	ctx := context.Background()
	h := openTestHistory(t)

	p := samplePlan()
	require.NoError(t, h.Record(ctx, p, "/work/PLAN.md"))

	rec, err := h.Get(ctx, p.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, p.ID, rec.ID)
	assert.Equal(t, "plan_workflow", rec.Command)
	assert.Equal(t, "/work/PLAN.md", rec.Path)
	assert.Equal(t, 2, rec.StepCount)
	assert.True(t, fixedNow.Equal(rec.CreatedAt))

	decoded, err := rec.Plan()
	require.NoError(t, err)
	assert.Equal(t, p.Steps[0].Name, decoded.Steps[0].Name)

	_, err = h.Get(ctx, "missing")
	assert.ErrorContains(t, err, "not found")
	_, err = h.Get(ctx, "")
	assert.Error(t, err)
}

func TestHistoryList(t *testing.T) {
	ctx := context.Background()
	h := openTestHistory(t)

	for i, cmd := range []string{"plan_workflow", "flow:convert", "plan_workflow"} {
		p := samplePlan()
		p.ID = []string{"aaa-1", "bbb-2", "ccc-3"}[i]
		p.Command = cmd
		p.CreatedAt = fixedNow.Add(time.Duration(i) * time.Minute)
		require.NoError(t, h.Record(ctx, p, "PLAN.md"))
	}

	all, err := h.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "ccc-3", all[0].ID)

	filtered, err := h.List(ctx, "plan_workflow", 1)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ccc-3", filtered[0].ID)
}

func TestHistoryAmbiguousPrefix(t *testing.T) {
	ctx := context.Background()
	h := openTestHistory(t)

	for _, id := range []string{"abc-1", "abc-2"} {
		p := samplePlan()
		p.ID = id
		require.NoError(t, h.Record(ctx, p, "PLAN.md"))
	}

	_, err := h.Get(ctx, "abc")
	assert.ErrorContains(t, err, "ambiguous")
}
