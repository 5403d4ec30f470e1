package presenter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestTerminal() (*Terminal, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name     string
		noColor  string
		color    string
		expected ColorMode
	}{
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"unset", "", "", ColorAuto},
		{"unknown value", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("PLUGDOC_COLOR", tt.color)
			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestTerminalStreams(t *testing.T) {
	term, out, errOut := newTestTerminal()

	term.Success("loaded 3 commands")
	term.Info("plain")
	term.Warning("unresolved step 2: agent ghost")
	term.Error(errors.New("boom"), "failed to load plugin bundle")
	term.Error(nil, "ignored")

	assert.Equal(t, "✓ loaded 3 commands\nplain\n", out.String())
	assert.Equal(t, "⚠ unresolved step 2: agent ghost\n[ERROR] failed to load plugin bundle: boom\n", errOut.String())
}

func TestTerminalQuiet(t *testing.T) {
	term, out, errOut := newTestTerminal()
	term.SetQuiet(true)
	assert.True(t, term.IsQuiet())

	term.Success("hidden")
	term.Info("hidden")
	term.Warning("hidden")
	term.Section("hidden")
	term.Separator()
	term.Table([]string{"a"}, [][]string{{"b"}})
	term.Error(errors.New("still shown"), "")

	assert.Empty(t, out.String())
	assert.Equal(t, "[ERROR] still shown\n", errOut.String())
}

func TestTerminalSection(t *testing.T) {
	term, out, _ := newTestTerminal()
	term.Section("/plan_workflow")
	assert.Equal(t, "/plan_workflow\n--------------\n", out.String())
}

func TestTerminalTable(t *testing.T) {
	term, out, _ := newTestTerminal()
	term.Table([]string{"KIND", "NAME"}, [][]string{
		{"skill", "output-workflow-structure"},
		{"agent", "workflow-planner"},
	})

	rendered := out.String()
	assert.Contains(t, rendered, "KIND")
	assert.Contains(t, rendered, "output-workflow-structure")
	assert.Contains(t, rendered, "workflow-planner")
	assert.Contains(t, rendered, "╭")
}

func TestTerminalFinding(t *testing.T) {
	term, out, _ := newTestTerminal()
	term.Finding("commands/order.md:12", "error", "step-order", "step 3 is numbered twice")
	assert.Equal(t, "commands/order.md:12: error [step-order] step 3 is numbered twice\n", out.String())
}

func TestTerminalDiff(t *testing.T) {
	term, out, _ := newTestTerminal()
	diff := "--- a.md\n+++ a.md\n@@ -1 +1 @@\n-{{#if x}}\n+{% if x %}\n"
	term.Diff(diff)
	assert.Equal(t, diff, out.String())
}
