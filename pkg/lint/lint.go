// Package lint checks a plugin bundle for the structural properties its
// documents assume: subagents and skills that exist, required frontmatter,
// strictly numbered steps and a single templating syntax in prompt examples.
package lint

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Severity of a finding
type Severity string

// Severities
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem in one document
type Finding struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Fixable  bool     `json:"fixable,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s:%d: %s [%s] %s", f.Path, f.Line, f.Severity, f.Rule, f.Message)
}

// Config tunes which rules run and what they accept
type Config struct {
	Models   []string `json:"models"`
	Tools    []string `json:"tools,omitempty"`
	Disabled []string `json:"disabled,omitempty"`
}

// DefaultConfig accepts the standard model tiers and any tool
func DefaultConfig() Config {
	return Config{Models: []string{"opus", "sonnet", "haiku", "inherit"}}
}

func (c Config) enabled(rule string) bool {
	for _, d := range c.Disabled {
		if d == rule {
			return false
		}
	}
	return true
}

// Report is the outcome of a lint run
type Report struct {
	Findings []Finding `json:"findings"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
}

// Err returns every error finding as a multierror, or nil
func (r *Report) Err() error {
	var result *multierror.Error
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			result = multierror.Append(result, errors.New(f.String()))
		}
	}
	return result.ErrorOrNil()
}

// Fixable returns the findings a Fix run can repair
func (r *Report) Fixable() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Fixable {
			out = append(out, f)
		}
	}
	return out
}

// Run checks store with every enabled rule
func Run(ctx context.Context, store *docs.Store, cfg Config) *Report {
	report := &Report{Findings: []Finding{}}

	_ = telemetry.WithSpan(ctx, "lint", func(ctx context.Context) error {
		for _, rule := range Rules() {
			if !cfg.enabled(rule.ID) {
				logger.G(ctx).WithField("rule", rule.ID).Debug("rule disabled")
				continue
			}
			for _, f := range rule.check(store, cfg) {
				f.Rule = rule.ID
				f.Severity = rule.Severity
				f.Fixable = rule.fix != nil
				report.Findings = append(report.Findings, f)
			}
		}

		sort.SliceStable(report.Findings, func(i, j int) bool {
			a, b := report.Findings[i], report.Findings[j]
			if a.Path != b.Path {
				return a.Path < b.Path
			}
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Rule < b.Rule
		})

		for _, f := range report.Findings {
			if f.Severity == SeverityError {
				report.Errors++
			} else {
				report.Warnings++
			}
		}

		telemetry.SetAttributes(ctx,
			attribute.Int("lint.errors", report.Errors),
			attribute.Int("lint.warnings", report.Warnings),
		)
		return nil
	})

	return report
}
