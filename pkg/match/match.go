// Package match decides which skills and agents apply to a free-text request
// by scoring their descriptions and trigger phrases against it.
package match

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Defaults for Options left at their zero value
const (
	DefaultThreshold = 0.15
	DefaultLimit     = 5

	triggerBonus    = 0.5
	maxTriggerBonus = 1.0
)

// Options filter and bound a match
type Options struct {
	Kinds     []docs.Kind
	Limit     int
	Threshold float64
}

// Match is a document that applies to the request
type Match struct {
	Kind        docs.Kind `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Score       float64   `json:"score"`
	Reasons     []string  `json:"reasons,omitempty"`
}

// trigger is a phrase that, when present in a request, points at a document
type trigger struct {
	phrase string
	source string
	terms  map[string]bool
	glob   glob.Glob
}

type candidate struct {
	kind        docs.Kind
	name        string
	description string
	terms       map[string]bool
	triggers    []trigger
	namePattern glob.Glob
}

// Engine scores requests against an indexed store
type Engine struct {
	candidates []candidate
	idf        map[string]float64
}

// NewEngine indexes every agent and skill in store
func NewEngine(store *docs.Store) *Engine {
	e := &Engine{idf: map[string]float64{}}

	skillTriggers := map[string][]trigger{}
	for _, a := range store.Agents() {
		var own []trigger
		for _, t := range a.Triggers {
			tr := newTrigger(t.When, a.Name)
			own = append(own, tr)
			skillTriggers[t.Skill] = append(skillTriggers[t.Skill], tr)
		}
		e.candidates = append(e.candidates, newCandidate(docs.KindAgent, a.Name, a.Description, own))
	}
	for _, s := range store.Skills() {
		e.candidates = append(e.candidates, newCandidate(docs.KindSkill, s.Name, s.Description, skillTriggers[s.Name]))
	}

	df := map[string]int{}
	for _, c := range e.candidates {
		for t := range c.terms {
			df[t]++
		}
	}
	n := float64(len(e.candidates))
	for t, count := range df {
		e.idf[t] = math.Log(1 + n/float64(1+count))
	}

	return e
}

func newCandidate(kind docs.Kind, name, description string, triggers []trigger) candidate {
	c := candidate{
		kind:        kind,
		name:        name,
		description: description,
		terms:       termSet(description),
		triggers:    triggers,
	}
	if name != "" {
		c.namePattern, _ = glob.Compile("*" + glob.QuoteMeta(strings.ToLower(name)) + "*")
	}
	return c
}

// newTrigger compiles phrases containing glob metacharacters; other phrases
// match when all of their terms appear in the request.
func newTrigger(phrase, source string) trigger {
	t := trigger{
		phrase: phrase,
		source: source,
		terms:  termSet(phrase),
	}
	lower := strings.ToLower(strings.TrimSpace(phrase))
	if strings.ContainsAny(lower, "*?[") {
		if g, err := glob.Compile("*" + lower + "*"); err == nil {
			t.glob = g
		}
	}
	return t
}

func (t trigger) matches(lower string, terms map[string]bool) bool {
	if t.glob != nil {
		return t.glob.Match(lower)
	}
	if len(t.terms) == 0 {
		return false
	}
	for term := range t.terms {
		if !terms[term] {
			return false
		}
	}
	return true
}

// Match scores every candidate against text and returns those above the
// threshold, best first.
func (e *Engine) Match(ctx context.Context, text string, opts Options) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}

	var matches []Match
	_ = telemetry.WithSpan(ctx, "match", func(ctx context.Context) error {
		lower := strings.ToLower(text)
		terms := termSet(text)

		for _, c := range e.candidates {
			if !wantKind(opts.Kinds, c.kind) {
				continue
			}
			m := e.score(c, lower, terms)
			if m.Score < opts.Threshold {
				continue
			}
			matches = append(matches, m)
		}

		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].Score != matches[j].Score {
				return matches[i].Score > matches[j].Score
			}
			return matches[i].Name < matches[j].Name
		})
		if len(matches) > opts.Limit {
			matches = matches[:opts.Limit]
		}

		telemetry.SetAttributes(ctx, attribute.Int("match.results", len(matches)))
		logger.G(ctx).WithField("results", len(matches)).Debug("matched request")
		return nil
	}, attribute.Int("match.candidates", len(e.candidates)))

	return matches
}

func (e *Engine) score(c candidate, lower string, terms map[string]bool) Match {
	m := Match{Kind: c.kind, Name: c.name, Description: c.description}

	var total, overlap float64
	var shared []string
	for t := range c.terms {
		w := e.idf[t]
		total += w
		if terms[t] {
			overlap += w
			shared = append(shared, t)
		}
	}
	if total > 0 {
		m.Score = overlap / total
	}
	if len(shared) > 0 {
		sort.Strings(shared)
		m.Reasons = append(m.Reasons, "terms: "+strings.Join(shared, ", "))
	}

	bonus := 0.0
	if c.namePattern != nil && c.namePattern.Match(lower) {
		bonus += triggerBonus
		m.Reasons = append(m.Reasons, "name mentioned")
	}
	for _, t := range c.triggers {
		if t.matches(lower, terms) {
			bonus += triggerBonus
			m.Reasons = append(m.Reasons, fmt.Sprintf("trigger %q (%s)", t.phrase, t.source))
		}
	}
	m.Score += math.Min(bonus, maxTriggerBonus)
	m.Score = math.Round(m.Score*1e4) / 1e4

	return m
}

func wantKind(kinds []docs.Kind, k docs.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Triggers returns the agent triggers whose phrases occur in text
func Triggers(text string, triggers []docs.Trigger) []docs.Trigger {
	lower := strings.ToLower(text)
	terms := termSet(text)

	var out []docs.Trigger
	for _, t := range triggers {
		if newTrigger(t.When, "").matches(lower, terms) {
			out = append(out, t)
		}
	}
	return out
}
