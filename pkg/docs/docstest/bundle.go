// Package docstest writes small plugin bundles to disk for tests.
package docstest

import (
	"os"
	"path/filepath"
	"testing"
)

// PlanWorkflowCommand is a three step command delegating to two subagents
const PlanWorkflowCommand = `---
argument-hint: <workflow-description>
description: Plan a new Output SDK workflow from a description
model: opus
allowed-tools: Read, Write, Task
---

# Plan Workflow

Plan the workflow described in $ARGUMENTS.

## Step 1: Gather requirements

Use the ` + "`workflow-planner`" + ` subagent to analyse the request.
Consult the ` + "`output-workflow-structure`" + ` skill for the file layout.

## Step 2: Draft the plan

The workflow-planner subagent writes the plan to ` + "`.outputai/plans/YYYY_MM_DD_<workflow_name>/PLAN.md`" + `.

If changes are needed, update the draft; otherwise proceed to review.

## Step 3: Review

Use the ` + "`workflow-quality`" + ` subagent to review the plan.
`

// ConvertCommand is a nested command with a Handlebars prompt example
const ConvertCommand = `---
argument-hint: <flow-workflow-path>
description: Convert a legacy Flow SDK workflow to the Output SDK
model: sonnet
---

## Step 1: Analyse the legacy workflow

@agent-flow-migrator inspects the workflow at $ARGUMENTS.

## Step 2: Convert prompts

Rewrite prompt templates following skill ` + "`output-prompts`" + `.

` + "```" + `
{{#if context}}Context: {{context}}{{/if}}
` + "```" + `
`

// WorkflowPlannerAgent designs workflows
const WorkflowPlannerAgent = `---
name: workflow-planner
description: Plans Output SDK workflows, designing steps, schemas and error handling for new workflow requirements
tools: Read, Grep, Glob, Write
model: opus
skills:
  designing workflow structure: output-workflow-structure
---

You are a workflow architect.

- Handling API failures: use the ` + "`output-error-handling`" + ` skill
`

// WorkflowQualityAgent reviews workflows
const WorkflowQualityAgent = `---
name: workflow-quality
description: Reviews workflow code quality, testing coverage and error handling
tools: [Read, Grep]
model: sonnet
---

Review the workflow carefully.
`

// FlowMigratorAgent migrates Flow SDK workflows
const FlowMigratorAgent = `---
name: flow-migrator
description: Migrates legacy Flow SDK workflows and prompts to the Output SDK
model: sonnet
skills:
  - output-prompts
---

Migrate one file at a time.
`

// Skills maps skill names to their descriptions
var Skills = map[string]string{
	"output-workflow-structure": "Structure Output SDK workflow files such as workflow.ts, steps.ts, types.ts and evaluators",
	"output-error-handling":     "Handle errors in workflow steps with retries and non-retryable errors for 4xx API responses",
	"output-prompts":            "Write prompt files with YAML frontmatter and Liquid templating for LLM calls",
}

// Marketplace lists the single plugin of the bundle
const Marketplace = `{
  "name": "outputai",
  "owner": {"name": "Output"},
  "plugins": [
    {"name": "outputai", "source": "./plugins/outputai", "description": "Output SDK workflow helpers"}
  ]
}
`

// WriteFile writes content to root/rel, creating parent directories
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}

// SkillDoc renders a SKILL.md for name
func SkillDoc(name, description string) string {
	return "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n\nGuidance for " + name + ".\n"
}

// WriteBundle writes the sample marketplace bundle into a temp directory and
// returns its root.
func WriteBundle(t testing.TB) string {
	t.Helper()
	root := t.TempDir()
	plugin := "plugins/outputai/"

	WriteFile(t, root, ".claude-plugin/marketplace.json", Marketplace)
	WriteFile(t, root, plugin+".claude-plugin/plugin.json", `{"name": "outputai", "version": "0.1.0"}`)
	WriteFile(t, root, plugin+"commands/plan_workflow.md", PlanWorkflowCommand)
	WriteFile(t, root, plugin+"commands/flow/convert.md", ConvertCommand)
	WriteFile(t, root, plugin+"agents/workflow-planner.md", WorkflowPlannerAgent)
	WriteFile(t, root, plugin+"agents/workflow-quality.md", WorkflowQualityAgent)
	WriteFile(t, root, plugin+"agents/flow-migrator.md", FlowMigratorAgent)
	for name, description := range Skills {
		WriteFile(t, root, plugin+"skills/"+name+"/SKILL.md", SkillDoc(name, description))
	}
	return root
}

// PluginDir returns the sample plugin directory under root
func PluginDir(root string) string {
	return filepath.Join(root, "plugins", "outputai")
}
