package main

import (
	"context"
	"fmt"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// LintConfig holds configuration for the lint command
type LintConfig struct {
	Fix    bool
	DryRun bool
	JSON   bool
}

// NewLintConfig creates a new LintConfig with default values
func NewLintConfig() *LintConfig {
	return &LintConfig{}
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the bundle for broken references and malformed documents",
	Long: `Check every command, agent and skill for missing frontmatter, unknown subagents and
skills, misnumbered steps, unknown model tiers and tools, duplicate names, missing
marketplace sources and Handlebars syntax in prompt examples.

With --fix, fixable findings are rewritten in place; add --dry-run to only print the
diffs. The exit status is 1 when any error remains.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		runLintCommand(ctx, getLintConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewLintConfig()
	lintCmd.Flags().Bool("fix", defaults.Fix, "Rewrite fixable findings in place")
	lintCmd.Flags().Bool("dry-run", defaults.DryRun, "With --fix, print the diffs without writing")
	lintCmd.Flags().Bool("json", defaults.JSON, "Output the report as JSON")
}

func getLintConfigFromFlags(cmd *cobra.Command) *LintConfig {
	lintConfig := NewLintConfig()
	if fix, err := cmd.Flags().GetBool("fix"); err == nil {
		lintConfig.Fix = fix
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		lintConfig.DryRun = dryRun
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		lintConfig.JSON = jsonOutput
	}
	return lintConfig
}

func runLintCommand(ctx context.Context, lintConfig *LintConfig) {
	cfg := mustLoadConfig(ctx)
	rules := lintRules(cfg)
	store := loadStore(ctx, cfg)

	if lintConfig.Fix {
		store = applyFixes(ctx, store, rules, lintConfig, cfg)
	}

	report := lint.Run(ctx, store, rules)
	if lintConfig.JSON {
		if report.Findings == nil {
			report.Findings = []lint.Finding{}
		}
		printJSON(ctx, report)
	} else {
		printReport(report)
	}

	if report.Errors > 0 {
		exit(ctx, 1)
	}
}

// applyFixes computes fixes for store and, unless this is a dry run, writes
// them and returns the reloaded store.
func applyFixes(ctx context.Context, store *docs.Store, rules lint.Config, lintConfig *LintConfig, cfg config.Config) *docs.Store {
	fixes := lint.Fix(ctx, store, rules)
	if len(fixes) == 0 {
		if !lintConfig.JSON {
			presenter.Info("Nothing to fix")
		}
		return store
	}

	if lintConfig.DryRun {
		if !lintConfig.JSON {
			for _, f := range fixes {
				presenter.Diff(f.Diff)
			}
			presenter.Info(fmt.Sprintf("%d files would be fixed", len(fixes)))
		}
		return store
	}

	applied, err := lint.Apply(ctx, fixes)
	if err != nil {
		presenter.Error(err, "some fixes could not be applied")
	}
	if !lintConfig.JSON {
		for _, f := range applied {
			presenter.Success(fmt.Sprintf("Fixed %s (%v)", f.Path, f.Rules))
		}
	}
	return loadStore(ctx, cfg)
}

func printReport(report *lint.Report) {
	for _, f := range report.Findings {
		presenter.Finding(fmt.Sprintf("%s:%d", relPath(f.Path), f.Line), string(f.Severity), f.Rule, f.Message)
	}
	if len(report.Findings) > 0 {
		presenter.Separator()
	}

	summary := fmt.Sprintf("%d errors, %d warnings", report.Errors, report.Warnings)
	if n := len(report.Fixable()); n > 0 {
		summary += fmt.Sprintf(", %d fixable with --fix", n)
	}
	switch {
	case report.Errors > 0:
		presenter.Error(errors.New(summary), "lint failed")
	case report.Warnings > 0:
		presenter.Warning(summary)
	default:
		presenter.Success("No problems found")
	}
}
