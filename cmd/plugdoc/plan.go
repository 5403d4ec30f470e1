package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/spf13/cobra"
)

// PlanConfig holds configuration for the plan command
type PlanConfig struct {
	Write     bool
	JSON      bool
	BaseDir   string
	NoHistory bool
}

// NewPlanConfig creates a new PlanConfig with default values
func NewPlanConfig() *PlanConfig {
	return &PlanConfig{
		BaseDir: ".",
	}
}

var planCmd = &cobra.Command{
	Use:   "plan <command> [arguments...]",
	Short: "Plan the step by step dispatch of a slash command",
	Long: `Plan which subagent performs each numbered step of a slash command, which skills
apply to it and where the plan artifact goes.

The plan is printed as Markdown by default. With --write it is saved as PLAN.md at the
command's output path and recorded in the plan history. When the command needs
arguments that were not given, the question for the user is printed and the exit
status is 1.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runPlanCommand(ctx, args[0], strings.Join(args[1:], " "), getPlanConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewPlanConfig()
	planCmd.Flags().BoolP("write", "w", defaults.Write, "Write PLAN.md and record it in the plan history")
	planCmd.Flags().Bool("json", defaults.JSON, "Output the plan as JSON")
	planCmd.Flags().String("dir", defaults.BaseDir, "Directory relative output paths are resolved against")
	planCmd.Flags().Bool("no-history", defaults.NoHistory, "Do not record written plans in the plan history")
}

func getPlanConfigFromFlags(cmd *cobra.Command) *PlanConfig {
	planConfig := NewPlanConfig()
	if write, err := cmd.Flags().GetBool("write"); err == nil {
		planConfig.Write = write
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		planConfig.JSON = jsonOutput
	}
	if dir, err := cmd.Flags().GetString("dir"); err == nil && dir != "" {
		planConfig.BaseDir = dir
	}
	if noHistory, err := cmd.Flags().GetBool("no-history"); err == nil {
		planConfig.NoHistory = noHistory
	}
	return planConfig
}

func plannerOptions(cfg config.Config) []plan.Option {
	return []plan.Option{
		plan.WithPlansDir(cfg.Plans.Dir),
		plan.WithMatchOptions(plan.DefaultStepMatches, cfg.Match.Threshold),
	}
}

func runPlanCommand(ctx context.Context, slug, args string, planConfig *PlanConfig) {
	cfg := mustLoadConfig(ctx)
	store := loadStore(ctx, cfg)

	p, err := plan.New(store, plannerOptions(cfg)...).Plan(ctx, slug, args)
	if err != nil {
		fail(ctx, err, "failed to plan command")
	}

	if p.NeedsInput {
		if planConfig.JSON {
			printJSON(ctx, p)
		}
		presenter.Warning(p.Question)
		exit(ctx, 1)
	}

	for _, u := range p.Unresolved() {
		presenter.Warning("unresolved " + u)
	}

	if !planConfig.Write {
		printPlan(ctx, p, planConfig.JSON)
		return
	}

	path, err := plan.NewWriter(planConfig.BaseDir).Write(ctx, p)
	if err != nil {
		fail(ctx, err, "failed to write plan")
	}
	if !planConfig.NoHistory {
		recordPlan(ctx, cfg, p, path)
	}

	if planConfig.JSON {
		printJSON(ctx, p)
		return
	}
	presenter.Success(fmt.Sprintf("Plan for /%s written to %s", p.Command, path))
}

func printPlan(ctx context.Context, p *plan.Plan, jsonOutput bool) {
	if jsonOutput {
		printJSON(ctx, p)
		return
	}
	content, err := plan.Markdown(p)
	if err != nil {
		fail(ctx, err, "failed to render plan")
	}
	os.Stdout.Write(content)
}

// recordPlan adds a written plan to the history. The plan file is already on
// disk, so a history failure only warns.
func recordPlan(ctx context.Context, cfg config.Config, p *plan.Plan, path string) {
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		presenter.Warning("plan history unavailable: " + err.Error())
		return
	}
	history, err := plan.OpenHistory(ctx, dbPath)
	if err != nil {
		presenter.Warning("plan history unavailable: " + err.Error())
		return
	}
	defer history.Close()

	if err := history.Record(ctx, p, path); err != nil {
		presenter.Warning("failed to record plan: " + err.Error())
		return
	}
	logger.G(ctx).WithField("id", p.ID).WithField("db", dbPath).Debug("recorded plan")
}
