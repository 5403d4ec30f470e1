package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListConfigKinds(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		want    []docs.Kind
		wantErr bool
	}{
		{name: "all kinds", kind: "", want: nil},
		{name: "plural", kind: "skills", want: []docs.Kind{docs.KindSkill}},
		{name: "command", kind: "command", want: []docs.Kind{docs.KindCommand}},
		{name: "unknown", kind: "recipes", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&ListConfig{Kind: tt.kind}).Kinds()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchConfigOptions(t *testing.T) {
	opts, err := NewMatchConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, match.DefaultLimit, opts.Limit)
	assert.Equal(t, match.DefaultThreshold, opts.Threshold)
	assert.Empty(t, opts.Kinds)

	opts, err = (&MatchConfig{Kind: "agent", Limit: 2, Threshold: 0.3}).Options()
	require.NoError(t, err)
	assert.Equal(t, []docs.Kind{docs.KindAgent}, opts.Kinds)

	_, err = (&MatchConfig{Kind: "command"}).Options()
	assert.Error(t, err)
	_, err = (&MatchConfig{Threshold: 1.5}).Options()
	assert.Error(t, err)
	_, err = (&MatchConfig{Limit: -1}).Options()
	assert.Error(t, err)
	_, err = (&MatchConfig{Limit: 3, Threshold: 0}).Options()
	assert.ErrorContains(t, err, "greater than 0")
}

func newFlagCommand(register func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	register(cmd)
	return cmd
}

func TestGetMatchConfigFromFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	register := func(cmd *cobra.Command) {
		cmd.Flags().StringP("kind", "k", "", "")
		cmd.Flags().IntP("limit", "n", match.DefaultLimit, "")
		cmd.Flags().Float64("threshold", match.DefaultThreshold, "")
		cmd.Flags().Bool("json", false, "")
	}

	viper.Set("match.limit", 9)
	cmd := newFlagCommand(register)
	require.NoError(t, cmd.ParseFlags([]string{"--kind", "skill"}))
	got := getMatchConfigFromFlags(cmd)
	assert.Equal(t, 9, got.Limit)
	assert.Equal(t, "skill", got.Kind)

	cmd = newFlagCommand(register)
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "3", "--json"}))
	got = getMatchConfigFromFlags(cmd)
	assert.Equal(t, 3, got.Limit)
	assert.True(t, got.JSON)
}

func TestGetPlanConfigFromFlags(t *testing.T) {
	cmd := newFlagCommand(func(cmd *cobra.Command) {
		cmd.Flags().BoolP("write", "w", false, "")
		cmd.Flags().Bool("json", false, "")
		cmd.Flags().String("dir", ".", "")
		cmd.Flags().Bool("no-history", false, "")
	})
	require.NoError(t, cmd.ParseFlags([]string{"-w", "--dir", "out"}))

	got := getPlanConfigFromFlags(cmd)
	assert.True(t, got.Write)
	assert.False(t, got.JSON)
	assert.Equal(t, "out", got.BaseDir)
	assert.False(t, got.NoHistory)
}

func TestGetWatchConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Roots = []string{"bundle"}
	cfg.Watch.DebounceMS = 50
	cfg.Lint.Disabled = []string{"model-tier"}

	register := func(cmd *cobra.Command) {
		cmd.Flags().Int("debounce", 0, "")
		cmd.Flags().StringSlice("ignore-dirs", []string{".git", "node_modules"}, "")
	}

	cmd := newFlagCommand(register)
	require.NoError(t, cmd.ParseFlags(nil))
	got := getWatchConfig(cmd, cfg)
	assert.Equal(t, []string{"bundle"}, got.Roots)
	assert.Equal(t, 50*time.Millisecond, got.Debounce)
	assert.Equal(t, []string{"model-tier"}, got.Lint.Disabled)
	assert.Equal(t, []string{".git", "node_modules"}, got.IgnoreDirs)

	cmd = newFlagCommand(register)
	require.NoError(t, cmd.ParseFlags([]string{"--debounce", "0", "--ignore-dirs", "dist"}))
	got = getWatchConfig(cmd, cfg)
	assert.Equal(t, time.Duration(0), got.Debounce)
	assert.Equal(t, []string{"dist"}, got.IgnoreDirs)
}

func TestRenderConfigRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Roots = []string{".", "~/plugins"}
	cfg.Lint.Tools = []string{"Read", "Write"}

	content, err := renderConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(content), "log_level: info")
	assert.Contains(t, string(content), "debounce_ms: 300")

	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewReader(content)))
	got, err := config.FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLintRules(t *testing.T) {
	cfg := config.Default()
	cfg.Lint.Tools = []string{"Read"}
	cfg.Lint.Disabled = []string{"unknown-tool"}

	rules := lintRules(cfg)
	assert.Equal(t, cfg.Lint.Models, rules.Models)
	assert.Equal(t, []string{"Read"}, rules.Tools)
	assert.Equal(t, []string{"unknown-tool"}, rules.Disabled)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n  b\tc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "12345678", shortID("12345678-aaaa-bbbb"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestSchemaCommandArgs(t *testing.T) {
	assert.Equal(t, []string{"agent", "command", "plan", "skill"}, schemaCmd.ValidArgs)
	assert.Equal(t, "schema <agent|command|plan|skill>", schemaCmd.Use)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"list", "show", "match", "plan", "plans", "lint", "watch", "mcp", "schema", "init", "version"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("root"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
