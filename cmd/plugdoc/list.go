package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ListConfig holds configuration for the list command
type ListConfig struct {
	Kind string
	JSON bool
}

// NewListConfig creates a new ListConfig with default values
func NewListConfig() *ListConfig {
	return &ListConfig{}
}

// Kinds resolves the kind filter, where empty means every kind
func (c *ListConfig) Kinds() ([]docs.Kind, error) {
	if c.Kind == "" {
		return nil, nil
	}
	k, ok := docs.ParseKind(c.Kind)
	if !ok {
		return nil, errors.Errorf("invalid kind '%s', must be one of: command, agent, skill", c.Kind)
	}
	return []docs.Kind{k}, nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the commands, agents and skills in the bundle",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		runListCommand(ctx, getListConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewListConfig()
	listCmd.Flags().StringP("kind", "k", defaults.Kind, "Only list documents of this kind (command, agent, skill)")
	listCmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
}

func getListConfigFromFlags(cmd *cobra.Command) *ListConfig {
	config := NewListConfig()
	if kind, err := cmd.Flags().GetString("kind"); err == nil {
		config.Kind = kind
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

func runListCommand(ctx context.Context, config *ListConfig) {
	kinds, err := config.Kinds()
	if err != nil {
		fail(ctx, err, "invalid list options")
	}

	store := loadStore(ctx, mustLoadConfig(ctx))
	summaries := store.Summaries(kinds...)

	if config.JSON {
		if summaries == nil {
			summaries = []docs.Summary{}
		}
		printJSON(ctx, summaries)
		return
	}

	if len(summaries) == 0 {
		presenter.Info("No documents found in " + strings.Join(store.Roots(), ", "))
		return
	}

	if len(kinds) == 0 {
		showManifest(store.Manifest())
	}
	presenter.Table([]string{"KIND", "NAME", "PLUGIN", "DESCRIPTION"}, summaryRows(summaries))
	presenter.Info(fmt.Sprintf("%d documents", len(summaries)))
}

func showManifest(m docs.Manifest) {
	rows := make([][]string, 0, len(m.Plugins))
	for _, p := range m.Plugins {
		version := ""
		if p.Manifest != nil {
			version = p.Manifest.Version
		}
		rows = append(rows, []string{p.Name, version, p.Dir})
	}
	presenter.Table([]string{"PLUGIN", "VERSION", "DIRECTORY"}, rows)
	for _, mp := range m.Marketplaces {
		presenter.Info(fmt.Sprintf("Marketplace %s lists %d plugins (%s)", mp.Name, len(mp.Plugins), mp.Path))
	}
}

func summaryRows(summaries []docs.Summary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{string(s.Kind), s.Name, s.Plugin, truncate(s.Description, 72)})
	}
	return rows
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
