package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/spf13/cobra"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Browse the history of written plans",
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently written plans",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		command, _ := cmd.Flags().GetString("command")
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		runPlansListCommand(ctx, command, limit, jsonOutput)
	},
}

var plansShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a written plan by ID or unique ID prefix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		runPlansShowCommand(ctx, args[0], jsonOutput)
	},
}

func init() {
	plansListCmd.Flags().String("command", "", "Only list plans of this command")
	plansListCmd.Flags().IntP("limit", "n", 20, "Maximum number of plans to list")
	plansListCmd.Flags().Bool("json", false, "Output as JSON")
	plansShowCmd.Flags().Bool("json", false, "Output as JSON")

	plansCmd.AddCommand(withTracing(plansListCmd), withTracing(plansShowCmd))
}

func openHistory(ctx context.Context) *plan.History {
	cfg := mustLoadConfig(ctx)
	dbPath, err := cfg.ResolveDBPath()
	if err != nil {
		fail(ctx, err, "failed to resolve plan history location")
	}
	history, err := plan.OpenHistory(ctx, dbPath)
	if err != nil {
		fail(ctx, err, "failed to open plan history")
	}
	return history
}

func runPlansListCommand(ctx context.Context, command string, limit int, jsonOutput bool) {
	history := openHistory(ctx)
	defer history.Close()

	records, err := history.List(ctx, command, limit)
	if err != nil {
		fail(ctx, err, "failed to list plans")
	}

	if jsonOutput {
		if records == nil {
			records = []plan.Record{}
		}
		printJSON(ctx, records)
		return
	}

	if len(records) == 0 {
		presenter.Info("No plans have been written yet")
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			shortID(r.ID),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			"/" + r.Command,
			truncate(r.Arguments, 40),
			fmt.Sprint(r.StepCount),
			r.Path,
		})
	}
	presenter.Table([]string{"ID", "CREATED", "COMMAND", "ARGUMENTS", "STEPS", "PATH"}, rows)
}

func runPlansShowCommand(ctx context.Context, id string, jsonOutput bool) {
	history := openHistory(ctx)
	defer history.Close()

	record, err := history.Get(ctx, id)
	if err != nil {
		fail(ctx, err, "failed to find plan")
	}
	p, err := record.Plan()
	if err != nil {
		fail(ctx, err, "failed to read plan")
	}

	if jsonOutput {
		printJSON(ctx, p)
		return
	}
	content, err := plan.Markdown(p)
	if err != nil {
		fail(ctx, err, "failed to render plan")
	}
	presenter.Info("Written to " + record.Path)
	os.Stdout.Write(content)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
