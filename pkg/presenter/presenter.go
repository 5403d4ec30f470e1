// Package presenter writes user-facing CLI output. Results go to stdout;
// errors and warnings go to stderr so that JSON output stays parseable.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"
)

// ColorMode selects whether output is colored
type ColorMode int

const (
	// ColorAuto colors output when writing to a terminal
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

var (
	errorStyle   = color.New(color.FgRed, color.Bold)
	warningStyle = color.New(color.FgYellow, color.Bold)
	successStyle = color.New(color.FgGreen, color.Bold)
	headerStyle  = color.New(color.Bold)
	faintStyle   = color.New(color.Faint)
	addedStyle   = color.New(color.FgGreen)
	removedStyle = color.New(color.FgRed)
	hunkStyle    = color.New(color.FgCyan)
)

// Terminal writes styled output to a pair of writers
type Terminal struct {
	out   io.Writer
	err   io.Writer
	quiet bool
}

// New creates a Terminal on stdout and stderr, honouring NO_COLOR and PLUGDOC_COLOR
func New() *Terminal {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a Terminal with custom writers and color mode
func NewWithOptions(out, errOut io.Writer, mode ColorMode) *Terminal {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &Terminal{out: out, err: errOut}
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("PLUGDOC_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	}
	return ColorAuto
}

// Error reports err on stderr, even in quiet mode
func (t *Terminal) Error(err error, context string) {
	if err == nil {
		return
	}
	if context != "" {
		errorStyle.Fprintf(t.err, "[ERROR] %s: %v\n", context, err)
		return
	}
	errorStyle.Fprintf(t.err, "[ERROR] %v\n", err)
}

// Warning reports a non-fatal problem on stderr
func (t *Terminal) Warning(message string) {
	if t.quiet {
		return
	}
	warningStyle.Fprintf(t.err, "⚠ %s\n", message)
}

// Success reports a completed action
func (t *Terminal) Success(message string) {
	if t.quiet {
		return
	}
	successStyle.Fprintf(t.out, "✓ %s\n", message)
}

// Info prints a plain line
func (t *Terminal) Info(message string) {
	if t.quiet {
		return
	}
	fmt.Fprintln(t.out, message)
}

// Section prints an underlined heading
func (t *Terminal) Section(title string) {
	if t.quiet {
		return
	}
	headerStyle.Fprintf(t.out, "%s\n%s\n", title, strings.Repeat("-", len([]rune(title))))
}

// Separator prints a faint rule
func (t *Terminal) Separator() {
	if t.quiet {
		return
	}
	faintStyle.Fprintln(t.out, strings.Repeat("-", 60))
}

// Table renders rows under headers with a rounded border
func (t *Terminal) Table(headers []string, rows [][]string) {
	if t.quiet {
		return
	}

	head := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return head
			}
			return cell
		})

	fmt.Fprintln(t.out, tbl.String())
}

// Finding prints one lint finding as "location: severity [rule] message",
// coloring the severity.
func (t *Terminal) Finding(location, severity, rule, message string) {
	style := warningStyle
	if severity == "error" {
		style = errorStyle
	}
	fmt.Fprintf(t.out, "%s: %s [%s] %s\n", location, style.Sprint(severity), rule, message)
}

// Diff prints a unified diff with added and removed lines colored
func (t *Terminal) Diff(unified string) {
	for _, line := range strings.SplitAfter(unified, "\n") {
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			headerStyle.Fprint(t.out, line)
		case strings.HasPrefix(line, "@@"):
			hunkStyle.Fprint(t.out, line)
		case strings.HasPrefix(line, "+"):
			addedStyle.Fprint(t.out, line)
		case strings.HasPrefix(line, "-"):
			removedStyle.Fprint(t.out, line)
		default:
			fmt.Fprint(t.out, line)
		}
	}
}

// SetQuiet suppresses everything but errors
func (t *Terminal) SetQuiet(quiet bool) {
	t.quiet = quiet
}

// IsQuiet reports whether quiet mode is on
func (t *Terminal) IsQuiet() bool {
	return t.quiet
}

var std = New()

// Error reports err on the default terminal
func Error(err error, context string) { std.Error(err, context) }

// Warning reports a warning on the default terminal
func Warning(message string) { std.Warning(message) }

// Success reports success on the default terminal
func Success(message string) { std.Success(message) }

// Info prints a line on the default terminal
func Info(message string) { std.Info(message) }

// Section prints a heading on the default terminal
func Section(title string) { std.Section(title) }

// Separator prints a rule on the default terminal
func Separator() { std.Separator() }

// Table renders a table on the default terminal
func Table(headers []string, rows [][]string) { std.Table(headers, rows) }

// Finding prints a lint finding on the default terminal
func Finding(location, severity, rule, message string) {
	std.Finding(location, severity, rule, message)
}

// Diff prints a unified diff on the default terminal
func Diff(unified string) { std.Diff(unified) }

// SetQuiet toggles quiet mode on the default terminal
func SetQuiet(quiet bool) { std.SetQuiet(quiet) }

// IsQuiet reports quiet mode of the default terminal
func IsQuiet() bool { return std.IsQuiet() }
