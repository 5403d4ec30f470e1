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

var showCmd = &cobra.Command{
	Use:   "show <kind> <name>",
	Short: "Show a parsed command, agent or skill",
	Long: `Show a parsed document. Commands are addressed by slug (for example plan_workflow
or /flow:convert), agents and skills by name.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		runShowCommand(ctx, args[0], args[1], jsonOutput)
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Output as JSON")
}

func runShowCommand(ctx context.Context, kindArg, name string, jsonOutput bool) {
	kind, ok := docs.ParseKind(kindArg)
	if !ok {
		fail(ctx, errors.Errorf("invalid kind '%s'", kindArg), "must be one of: command, agent, skill")
	}

	store := loadStore(ctx, mustLoadConfig(ctx))
	doc, err := store.Lookup(kind, name)
	if err != nil {
		fail(ctx, err, "document not found")
	}

	if jsonOutput {
		printJSON(ctx, doc)
		return
	}

	switch d := doc.(type) {
	case *docs.CommandDoc:
		showCommand(d)
	case *docs.AgentDoc:
		showAgent(d)
	case *docs.SkillDoc:
		showSkill(d)
	}
}

func showCommand(c *docs.CommandDoc) {
	presenter.Section("/" + c.Slug)
	presenter.Info(c.Description)
	fmt.Printf("Path:          %s\n", c.Origin.Path)
	fmt.Printf("Model:         %s\n", c.Model)
	fmt.Printf("Argument hint: %s\n", c.ArgumentHint)
	if len(c.AllowedTools) > 0 {
		fmt.Printf("Allowed tools: %s\n", strings.Join(c.AllowedTools, ", "))
	}
	if len(c.Steps) == 0 {
		return
	}

	rows := make([][]string, 0, len(c.Steps))
	for _, s := range c.Steps {
		rows = append(rows, []string{fmt.Sprint(s.Sequence), s.Name, s.Subagent, skillNames(s.Skills), s.OutputTemplate})
	}
	presenter.Table([]string{"STEP", "NAME", "SUBAGENT", "SKILLS", "OUTPUT"}, rows)
}

func showAgent(a *docs.AgentDoc) {
	presenter.Section(a.Name)
	presenter.Info(a.Description)
	fmt.Printf("Path:  %s\n", a.Origin.Path)
	if a.Model != "" {
		fmt.Printf("Model: %s\n", a.Model)
	}
	if len(a.Tools) > 0 {
		fmt.Printf("Tools: %s\n", strings.Join(a.Tools, ", "))
	}
	if len(a.Triggers) > 0 {
		rows := make([][]string, 0, len(a.Triggers))
		for _, t := range a.Triggers {
			rows = append(rows, []string{t.When, t.Skill})
		}
		presenter.Table([]string{"WHEN", "SKILL"}, rows)
	}
}

func showSkill(s *docs.SkillDoc) {
	presenter.Section(s.Name)
	presenter.Info(s.Description)
	fmt.Printf("Path: %s\n", s.Origin.Path)
	if len(s.AllowedTools) > 0 {
		fmt.Printf("Allowed tools: %s\n", strings.Join(s.AllowedTools, ", "))
	}
	if len(s.Skills) > 0 {
		fmt.Printf("References: %s\n", skillNames(s.Skills))
	}
}

func skillNames(refs []docs.SkillRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
