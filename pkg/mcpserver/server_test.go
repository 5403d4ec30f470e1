package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/docs/docstest"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := docstest.WriteBundle(t)
	s, err := New(func(ctx context.Context) (*docs.Store, error) {
		return docs.Load(ctx, root)
	}, Options{
		Version: "test",
		Lint:    lint.DefaultConfig(),
		Plan: []plan.Option{
			plan.WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }),
		},
	})
	require.NoError(t, err)
	return s, root
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	var request mcp.CallToolRequest
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestNewRequiresLoader(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestToolsRegistered(t *testing.T) {
	s, _ := newTestServer(t)
	tools, err := s.tools()
	require.NoError(t, err)

	var names []string
	for _, tl := range tools {
		names = append(names, tl.def.Name)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(tl.def.RawInputSchema, &schema), tl.def.Name)
		assert.Equal(t, "object", schema["type"], tl.def.Name)
	}
	assert.Equal(t, []string{"list_documents", "show_document", "match", "plan", "lint"}, names)
	assert.NotNil(t, s.MCP())
}

func TestListDocuments(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleListDocuments(ctx, call("list_documents", map[string]any{"kind": "agent"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var summaries []docs.Summary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summaries))
	require.Len(t, summaries, 3)
	assert.Equal(t, "flow-migrator", summaries[0].Name)
	for _, sum := range summaries {
		assert.Equal(t, docs.KindAgent, sum.Kind)
	}

	result, err = s.handleListDocuments(ctx, call("list_documents", nil))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summaries))
	assert.Len(t, summaries, 2+3+3)

	result, err = s.handleListDocuments(ctx, call("list_documents", map[string]any{"kind": "recipe"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "unknown document kind")
}

func TestShowDocument(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleShowDocument(ctx, call("show_document", map[string]any{"kind": "command", "name": "/flow:convert"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), "Convert a legacy Flow SDK workflow")

	result, err = s.handleShowDocument(ctx, call("show_document", map[string]any{"kind": "skill", "name": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMatch(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleMatch(ctx, call("match", map[string]any{
		"text": "How do I handle API errors with retries in my workflow steps?",
		"kind": "skill",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var matches []match.Match
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &matches))
	require.NotEmpty(t, matches)
	assert.Equal(t, "output-error-handling", matches[0].Name)

	result, err = s.handleMatch(ctx, call("match", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "text is required")
}

func TestPlanDoesNotWrite(t *testing.T) {
	s, root := newTestServer(t)
	ctx := context.Background()

	result, err := s.handlePlan(ctx, call("plan", map[string]any{
		"command":   "plan_workflow",
		"arguments": "Weather report workflow",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &p))
	assert.Equal(t, "plan_workflow", p.Command)
	assert.False(t, p.NeedsInput)
	require.Len(t, p.Steps, 3)
	assert.Equal(t, "workflow-planner", p.Steps[0].Agent)
	assert.Equal(t, "workflow-quality", p.Steps[2].Agent)
	assert.Equal(t, ".outputai/plans/2026_10_18_weather_report_workflow/PLAN.md", p.OutputPath)

	_, err = os.Stat(filepath.Join(root, ".outputai"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(".outputai")
	assert.True(t, os.IsNotExist(err))
}

func TestPlanNeedsInput(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handlePlan(context.Background(), call("plan", map[string]any{"command": "plan_workflow"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var p plan.Plan
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &p))
	assert.True(t, p.NeedsInput)
	assert.NotEmpty(t, p.Question)
}

func TestPlanUnknownCommand(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.handlePlan(context.Background(), call("plan", map[string]any{"command": "deploy"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestLint(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleLint(ctx, call("lint", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var report lint.Report
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &report))
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, lint.RuleTemplateSyntax, report.Findings[0].Rule)
}

func TestLoaderFailure(t *testing.T) {
	s, err := New(func(context.Context) (*docs.Store, error) {
		return nil, assert.AnError
	}, Options{})
	require.NoError(t, err)

	result, err := s.handleLint(context.Background(), call("lint", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), assert.AnError.Error())
}
