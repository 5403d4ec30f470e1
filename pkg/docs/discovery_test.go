package docs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/plugdoc/pkg/docs/docstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDiscovery(t *testing.T) {
	t.Run("defaults to current directory", func(t *testing.T) {
		d, err := NewDiscovery()
		require.NoError(t, err)
		abs, _ := filepath.Abs(".")
		assert.Equal(t, []string{abs}, d.Roots())
	})

	t.Run("dedupes roots", func(t *testing.T) {
		root := t.TempDir()
		d, err := NewDiscovery(WithRoots(root, root+"/."))
		require.NoError(t, err)
		assert.Equal(t, []string{root}, d.Roots())
	})

	t.Run("rejects invalid patterns", func(t *testing.T) {
		_, err := NewDiscovery(WithInclude("commands/[unclosed"))
		assert.ErrorContains(t, err, "invalid glob pattern")
	})
}

func TestDiscoveryPlugins(t *testing.T) {
	root := docstest.WriteBundle(t)
	docstest.WriteFile(t, root, ".claude-plugin/marketplace.json", `{
  "name": "outputai",
  "plugins": [
    {"name": "outputai", "source": "./plugins/outputai"},
    {"name": "remote", "source": {"source": "github", "repo": "acme/remote"}}
  ]
}`)

	d, err := NewDiscovery(WithRoots(root))
	require.NoError(t, err)

	plugins, markets, broken := d.Plugins(context.Background())
	assert.Empty(t, broken)
	require.Len(t, plugins, 1)
	assert.Equal(t, "outputai", plugins[0].Name)
	require.NotNil(t, plugins[0].Manifest)
	assert.Equal(t, "0.1.0", plugins[0].Manifest.Version)

	require.Len(t, markets, 1)
	require.Len(t, markets[0].Plugins, 2)
	assert.Equal(t, "acme/remote", markets[0].Plugins[1].Source.Remote)
	_, local := markets[0].SourceDir(markets[0].Plugins[1])
	assert.False(t, local)
}

func TestDiscoveryRootAsPlugin(t *testing.T) {
	root := t.TempDir()
	docstest.WriteFile(t, root, ".claude-plugin/plugin.json", `{"name": "solo"}`)
	docstest.WriteFile(t, root, "skills/output-prompts/SKILL.md", docstest.SkillDoc("output-prompts", "prompts"))

	d, err := NewDiscovery(WithRoots(root))
	require.NoError(t, err)

	plugins, _, _ := d.Plugins(context.Background())
	require.Len(t, plugins, 1)
	assert.Equal(t, "solo", plugins[0].Name)
	assert.Equal(t, root, plugins[0].Dir)
}

func TestDiscoveryBrokenManifest(t *testing.T) {
	root := t.TempDir()
	docstest.WriteFile(t, root, ".claude-plugin/marketplace.json", `{not json`)

	d, err := NewDiscovery(WithRoots(root))
	require.NoError(t, err)

	_, markets, broken := d.Plugins(context.Background())
	assert.Empty(t, markets)
	require.Len(t, broken, 1)
	assert.Equal(t, KindManifest, broken[0].Kind)
}

func TestDiscoveryIncludeExclude(t *testing.T) {
	root := docstest.WriteBundle(t)

	d, err := NewDiscovery(
		WithRoots(root),
		WithInclude("plugins/*/commands/**", "plugins/*/agents/*.md"),
		WithExclude("**/flow/**"),
	)
	require.NoError(t, err)

	plugins, _, _ := d.Plugins(context.Background())
	files, err := d.files(plugins)
	require.NoError(t, err)

	var kinds = map[Kind]int{}
	for _, f := range files {
		kinds[f.kind]++
		assert.NotEqual(t, "flow:convert", f.slug)
	}
	assert.Equal(t, map[Kind]int{KindCommand: 1, KindAgent: 3}, kinds)
}

func TestCommandSlug(t *testing.T) {
	assert.Equal(t, "plan_workflow", commandSlug("commands/plan_workflow.md", "outputai", false))
	assert.Equal(t, "outputai:flow:convert", commandSlug("commands/flow/convert.md", "outputai", true))
}

func TestPluginSourceUnmarshal(t *testing.T) {
	var s PluginSource
	require.NoError(t, json.Unmarshal([]byte(`"./plugins/x"`), &s))
	assert.Equal(t, PluginSource{Path: "./plugins/x"}, s)

	s = PluginSource{}
	require.NoError(t, json.Unmarshal([]byte(`{"source": "url", "url": "https://example.com/x.git"}`), &s))
	assert.Equal(t, "https://example.com/x.git", s.Remote)
}
