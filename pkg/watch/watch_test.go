package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/plugdoc/pkg/docs/docstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())

	cfg := NewConfig()
	cfg.Debounce = -time.Second
	assert.ErrorContains(t, cfg.Validate(), "debounce cannot be negative")

	cfg = NewConfig()
	cfg.Roots = nil
	assert.Error(t, cfg.Validate())
}

func TestRelevant(t *testing.T) {
	w, err := New(NewConfig())
	require.NoError(t, err)

	assert.True(t, w.relevant("plugins/outputai/commands/plan.md"))
	assert.True(t, w.relevant(".claude-plugin/marketplace.json"))
	assert.False(t, w.relevant("plugins/outputai/commands/plan.md.swp"))
	assert.False(t, w.relevant("node_modules/pkg/README.md"))
	assert.False(t, w.relevant(".git/COMMIT_EDITMSG.md"))
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	assert.Nil(t, d.C())

	d.add("b.md")
	d.add("a.md")
	d.add("b.md")

	select {
	case <-d.C():
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer never fired")
	}
	assert.Equal(t, []string{"a.md", "b.md"}, d.flush())
	assert.Nil(t, d.C())
}

func TestRun(t *testing.T) {
	root := docstest.WriteBundle(t)
	cfg := NewConfig()
	cfg.Roots = []string{root}
	cfg.Debounce = 50 * time.Millisecond

	w, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan Event, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ev Event) { events <- ev })
	}()

	initial := <-events
	require.NoError(t, initial.LoadErr)
	assert.Empty(t, initial.Paths)
	require.NotNil(t, initial.Report)
	assert.Equal(t, 1, initial.Report.Errors)

	path := filepath.Join(docstest.PluginDir(root), "commands", "flow", "convert.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nargument-hint: <path>\ndescription: fixed\nmodel: sonnet\n---\n"), 0o644))

	select {
	case ev := <-events:
		assert.Contains(t, ev.Paths, path)
		require.NotNil(t, ev.Report)
		assert.Zero(t, ev.Report.Errors)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
