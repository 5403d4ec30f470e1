// Package plan turns a command document and user arguments into an ordered
// dispatch plan: which subagent performs each step, which skills apply, and
// where the plan artifact goes. Plans are descriptive; carrying them out is
// left to the hosting assistant.
package plan

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultPlansDir is where plans go when the command names no output path
const DefaultPlansDir = ".outputai/plans"

// DefaultStepMatches is how many matched skills a step receives at most
const DefaultStepMatches = 2

const planFileName = "PLAN.md"

// SkillSource says why a skill was attached to a step
type SkillSource string

// Skill sources, in precedence order
const (
	SourceReference SkillSource = "reference"
	SourceTrigger   SkillSource = "trigger"
	SourceMatch     SkillSource = "match"
)

// SkillRef is a skill attached to a planned step
type SkillRef struct {
	Name       string      `json:"name"`
	Source     SkillSource `json:"source"`
	Unresolved bool        `json:"unresolved,omitempty"`
	Score      float64     `json:"score,omitempty"`
}

// PlannedStep is one step of a plan
type PlannedStep struct {
	Sequence        int           `json:"sequence"`
	Name            string        `json:"name"`
	Agent           string        `json:"agent,omitempty"`
	AgentUnresolved bool          `json:"agent_unresolved,omitempty"`
	Skills          []SkillRef    `json:"skills,omitempty"`
	Instructions    string        `json:"instructions"`
	Output          string        `json:"output,omitempty"`
	Branches        []docs.Branch `json:"branches,omitempty"`
}

// Plan is the ordered dispatch of one command invocation
type Plan struct {
	ID          string        `json:"id"`
	Command     string        `json:"command"`
	Description string        `json:"description"`
	Arguments   string        `json:"arguments"`
	Model       string        `json:"model,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	NeedsInput  bool          `json:"needs_input"`
	Question    string        `json:"question,omitempty"`
	OutputPath  string        `json:"output_path,omitempty"`
	Steps       []PlannedStep `json:"steps"`
}

// Unresolved lists the agents and skills the plan names that the bundle lacks
func (p *Plan) Unresolved() []string {
	var out []string
	for _, s := range p.Steps {
		if s.AgentUnresolved {
			out = append(out, fmt.Sprintf("step %d: agent %s", s.Sequence, s.Agent))
		}
		for _, sk := range s.Skills {
			if sk.Unresolved {
				out = append(out, fmt.Sprintf("step %d: skill %s", s.Sequence, sk.Name))
			}
		}
	}
	return out
}

// Planner builds plans against a loaded store
type Planner struct {
	store          *docs.Store
	engine         *match.Engine
	now            func() time.Time
	plansDir       string
	matchLimit     int
	matchThreshold float64
}

// Option configures a Planner
type Option func(*Planner)

// WithClock overrides the time used for IDs and date placeholders
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithPlansDir sets the directory for plans whose command names no output path
func WithPlansDir(dir string) Option {
	return func(p *Planner) {
		if dir != "" {
			p.plansDir = dir
		}
	}
}

// WithMatchOptions bounds how many matched skills each step receives
func WithMatchOptions(limit int, threshold float64) Option {
	return func(p *Planner) {
		p.matchLimit = limit
		p.matchThreshold = threshold
	}
}

// New creates a planner over store
func New(store *docs.Store, opts ...Option) *Planner {
	p := &Planner{
		store:          store,
		engine:         match.NewEngine(store),
		now:            time.Now,
		plansDir:       DefaultPlansDir,
		matchLimit:     DefaultStepMatches,
		matchThreshold: match.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan walks the steps of the command named slug in ascending order. When the
// command declares required arguments and args is blank, the returned plan has
// NeedsInput set and a Question for the user instead of an output path.
func (p *Planner) Plan(ctx context.Context, slug, args string) (*Plan, error) {
	cmd, err := p.store.Command(slug)
	if err != nil {
		return nil, err
	}

	var plan *Plan
	err = telemetry.WithSpan(ctx, "plan", func(ctx context.Context) error {
		args = strings.TrimSpace(args)
		now := p.now()
		plan = &Plan{
			ID:          uuid.NewString(),
			Command:     cmd.Slug,
			Description: cmd.Description,
			Arguments:   args,
			Model:       cmd.Model,
			CreatedAt:   now,
		}

		if args == "" && RequiresArguments(cmd.ArgumentHint) {
			plan.NeedsInput = true
			plan.Question = fmt.Sprintf("/%s needs %s. What should it work on?", cmd.Slug, strings.TrimSpace(cmd.ArgumentHint))
		}

		name := Slugify(args)
		if name == "" {
			name = Slugify(cmd.Slug)
		}

		steps := orderedSteps(cmd)
		for _, step := range steps {
			plan.Steps = append(plan.Steps, p.planStep(ctx, step, args, now, name))
		}

		if !plan.NeedsInput {
			plan.OutputPath = p.outputPath(steps, now, name)
		}

		telemetry.SetAttributes(ctx,
			attribute.String("plan.command", plan.Command),
			attribute.Int("plan.steps", len(plan.Steps)),
			attribute.Bool("plan.needs_input", plan.NeedsInput),
		)
		logger.G(ctx).WithField("command", plan.Command).WithField("steps", len(plan.Steps)).Debug("planned command")
		return nil
	}, attribute.String("plan.slug", slug))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to plan command '%s'", slug)
	}

	return plan, nil
}

// orderedSteps sorts steps by sequence. A command without numbered steps is
// a single implicit step covering its whole body.
func orderedSteps(cmd *docs.CommandDoc) []docs.Step {
	if len(cmd.Steps) == 0 {
		name := cmd.Description
		if name == "" {
			name = cmd.Slug
		}
		return []docs.Step{{
			Sequence:     1,
			Name:         name,
			Instructions: strings.TrimSpace(cmd.Body),
			Skills:       cmd.Skills,
			Line:         cmd.Origin.BodyLine,
		}}
	}

	steps := make([]docs.Step, len(cmd.Steps))
	copy(steps, cmd.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps
}

func (p *Planner) planStep(ctx context.Context, step docs.Step, args string, now time.Time, name string) PlannedStep {
	instructions := step.Instructions
	if args != "" {
		instructions = strings.ReplaceAll(instructions, "$ARGUMENTS", args)
	}

	ps := PlannedStep{
		Sequence:     step.Sequence,
		Name:         step.Name,
		Agent:        step.Subagent,
		Instructions: instructions,
		Branches:     step.Branches,
	}
	if step.OutputTemplate != "" {
		ps.Output = ExpandTemplate(step.OutputTemplate, now, name)
	}

	seen := map[string]bool{}
	add := func(ref SkillRef) {
		if seen[ref.Name] {
			return
		}
		seen[ref.Name] = true
		_, ok := p.store.Skill(ref.Name)
		ref.Unresolved = !ok
		ps.Skills = append(ps.Skills, ref)
	}

	for _, ref := range step.Skills {
		add(SkillRef{Name: ref.Name, Source: SourceReference})
	}

	if ps.Agent != "" {
		agent, ok := p.store.Agent(ps.Agent)
		ps.AgentUnresolved = !ok
		if ok {
			for _, t := range match.Triggers(instructions+"\n"+args, agent.Triggers) {
				add(SkillRef{Name: t.Skill, Source: SourceTrigger})
			}
		}
	}

	if p.matchLimit > 0 {
		hits := p.engine.Match(ctx, step.Name+"\n"+instructions, match.Options{
			Kinds:     []docs.Kind{docs.KindSkill},
			Limit:     p.matchLimit,
			Threshold: p.matchThreshold,
		})
		for _, m := range hits {
			add(SkillRef{Name: m.Name, Source: SourceMatch, Score: m.Score})
		}
	}

	return ps
}

// outputPath is the first plan artifact a step names, or the default plans
// location. Other Markdown paths in steps are inputs and never become the
// plan's destination.
func (p *Planner) outputPath(steps []docs.Step, now time.Time, name string) string {
	for _, s := range steps {
		if IsPlanTemplate(s.OutputTemplate) {
			return ExpandTemplate(s.OutputTemplate, now, name)
		}
	}
	return filepath.ToSlash(filepath.Join(p.plansDir, now.Format("2006_01_02")+"_"+name, planFileName))
}

var (
	optionalArgPattern = regexp.MustCompile(`\[[^\]]*\]`)
	requiredArgPattern = regexp.MustCompile(`<[^<>]+>`)
	nonSlugPattern     = regexp.MustCompile(`[^a-z0-9]+`)
)

// RequiresArguments reports whether an argument hint has a <placeholder>
// outside of [optional] brackets.
func RequiresArguments(hint string) bool {
	return requiredArgPattern.MatchString(optionalArgPattern.ReplaceAllString(hint, ""))
}

// Slugify makes a snake_case name from free text, capped at 48 characters
func Slugify(s string) string {
	slug := strings.Trim(nonSlugPattern.ReplaceAllString(strings.ToLower(s), "_"), "_")
	if len(slug) > 48 {
		slug = strings.TrimRight(slug[:48], "_")
	}
	return slug
}

var templatePlaceholders = []string{
	"YYYY_MM_DD", "YYYY-MM-DD", "<workflow_name>", "<workflow-name>", "<name>", "{name}",
}

// IsPlanTemplate reports whether an output path names a plan artifact: a
// PLAN.md file or a path built from date or name placeholders.
func IsPlanTemplate(tmpl string) bool {
	if tmpl == "" {
		return false
	}
	if path.Base(tmpl) == planFileName {
		return true
	}
	for _, ph := range templatePlaceholders {
		if strings.Contains(tmpl, ph) {
			return true
		}
	}
	return false
}

// ExpandTemplate fills the date and name placeholders of an output path
func ExpandTemplate(tmpl string, now time.Time, name string) string {
	return strings.NewReplacer(
		"YYYY_MM_DD", now.Format("2006_01_02"),
		"YYYY-MM-DD", now.Format("2006-01-02"),
		"<workflow_name>", name,
		"<workflow-name>", name,
		"<name>", name,
		"{name}", name,
	).Replace(tmpl)
}
