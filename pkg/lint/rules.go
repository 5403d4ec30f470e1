package lint

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jingkaihe/plugdoc/pkg/docs"
)

// Rule IDs
const (
	RuleFrontmatterMissing = "frontmatter-missing"
	RuleCommandFrontmatter = "command-frontmatter"
	RuleAgentFrontmatter   = "agent-frontmatter"
	RuleSkillFrontmatter   = "skill-frontmatter"
	RuleSkillDirName       = "skill-dir-name"
	RuleUnknownSubagent    = "unknown-subagent"
	RuleUnknownSkill       = "unknown-skill"
	RuleStepOrder          = "step-order"
	RuleTemplateSyntax     = "template-syntax"
	RuleModelTier          = "model-tier"
	RuleUnknownTool        = "unknown-tool"
	RuleDuplicateName      = "duplicate-name"
	RuleManifestSource     = "manifest-source"
	RuleParseError         = "parse-error"
)

// Rule is a named check over the whole store
type Rule struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`

	check func(*docs.Store, Config) []Finding
	fix   func(docs.Origin, string) (string, bool)
}

// Fixable reports whether the rule can rewrite documents
func (r Rule) Fixable() bool { return r.fix != nil }

// Rules returns every rule in evaluation order
func Rules() []Rule {
	return []Rule{
		{ID: RuleParseError, Severity: SeverityError, Description: "document or manifest failed to parse", check: checkParseErrors},
		{ID: RuleFrontmatterMissing, Severity: SeverityError, Description: "document has no YAML frontmatter", check: checkFrontmatterMissing},
		{ID: RuleCommandFrontmatter, Severity: SeverityError, Description: "command frontmatter lacks argument-hint, description or model", check: checkCommandFrontmatter},
		{ID: RuleAgentFrontmatter, Severity: SeverityError, Description: "agent frontmatter lacks name or description", check: checkAgentFrontmatter},
		{ID: RuleSkillFrontmatter, Severity: SeverityError, Description: "skill frontmatter lacks name or description", check: checkSkillFrontmatter},
		{ID: RuleSkillDirName, Severity: SeverityWarning, Description: "skill directory differs from its name", check: checkSkillDirName},
		{ID: RuleUnknownSubagent, Severity: SeverityError, Description: "step designates a subagent with no agent document", check: checkUnknownSubagents},
		{ID: RuleUnknownSkill, Severity: SeverityError, Description: "referenced skill has no SKILL.md", check: checkUnknownSkills},
		{ID: RuleStepOrder, Severity: SeverityError, Description: "steps are not numbered 1..N in order", check: checkStepOrder},
		{ID: RuleTemplateSyntax, Severity: SeverityError, Description: "Handlebars block helpers in prompt examples", check: checkTemplateSyntax, fix: fixTemplateSyntax},
		{ID: RuleModelTier, Severity: SeverityWarning, Description: "model is not a configured tier", check: checkModelTier},
		{ID: RuleUnknownTool, Severity: SeverityWarning, Description: "tool is not in the configured tool list", check: checkUnknownTools},
		{ID: RuleDuplicateName, Severity: SeverityError, Description: "two documents of a kind share a name", check: checkDuplicates},
		{ID: RuleManifestSource, Severity: SeverityError, Description: "marketplace plugin source directory is missing", check: checkManifestSources},
	}
}

func checkParseErrors(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, b := range store.Broken() {
		out = append(out, Finding{Path: b.Path, Line: 1, Message: fmt.Sprintf("%s: %v", b.Kind, b.Err)})
	}
	return out
}

func allOrigins(store *docs.Store) []docs.Origin {
	var out []docs.Origin
	for _, c := range store.Commands() {
		out = append(out, c.Origin)
	}
	for _, a := range store.Agents() {
		out = append(out, a.Origin)
	}
	for _, s := range store.Skills() {
		out = append(out, s.Origin)
	}
	return out
}

func checkFrontmatterMissing(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, o := range allOrigins(store) {
		if !o.Frontmatter {
			out = append(out, Finding{Path: o.Path, Line: 1, Message: "missing YAML frontmatter"})
		}
	}
	return out
}

func requireKeys(o docs.Origin, keys ...string) []Finding {
	if !o.Frontmatter {
		return nil
	}
	var out []Finding
	for _, key := range keys {
		if !o.Has(key) {
			out = append(out, Finding{Path: o.Path, Line: o.Line(key), Message: fmt.Sprintf("frontmatter is missing required key '%s'", key)})
		}
	}
	return out
}

func checkCommandFrontmatter(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, c := range store.Commands() {
		out = append(out, requireKeys(c.Origin, "argument-hint", "description", "model")...)
	}
	return out
}

func checkAgentFrontmatter(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, a := range store.Agents() {
		out = append(out, requireKeys(a.Origin, "name", "description")...)
	}
	return out
}

func checkSkillFrontmatter(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, s := range store.Skills() {
		out = append(out, requireKeys(s.Origin, "name", "description")...)
	}
	return out
}

func checkSkillDirName(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, s := range store.Skills() {
		if !s.Origin.Has("name") {
			continue
		}
		if dir := filepath.Base(s.Dir); dir != s.Name {
			out = append(out, Finding{
				Path:    s.Origin.Path,
				Line:    s.Origin.Line("name"),
				Message: fmt.Sprintf("skill '%s' lives in directory '%s'", s.Name, dir),
			})
		}
	}
	return out
}

func checkUnknownSubagents(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, c := range store.Commands() {
		for _, step := range c.Steps {
			if step.Subagent == "" {
				continue
			}
			if _, ok := store.Agent(step.Subagent); !ok {
				out = append(out, Finding{
					Path:    c.Origin.Path,
					Line:    step.SubagentLine,
					Message: fmt.Sprintf("step %d designates unknown subagent '%s'", step.Sequence, step.Subagent),
				})
			}
		}
	}
	return out
}

func checkUnknownSkills(store *docs.Store, _ Config) []Finding {
	var out []Finding
	check := func(path string, refs []docs.SkillRef) {
		for _, ref := range refs {
			if _, ok := store.Skill(ref.Name); !ok {
				out = append(out, Finding{
					Path:    path,
					Line:    ref.Line,
					Message: fmt.Sprintf("skill '%s' has no skills/%s/SKILL.md", ref.Name, ref.Name),
				})
			}
		}
	}
	for _, c := range store.Commands() {
		check(c.Origin.Path, c.Skills)
	}
	for _, a := range store.Agents() {
		check(a.Origin.Path, a.Skills)
	}
	for _, s := range store.Skills() {
		check(s.Origin.Path, s.Skills)
	}
	return out
}

func checkStepOrder(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, c := range store.Commands() {
		for i, step := range c.Steps {
			var msg string
			switch {
			case i > 0 && step.Sequence == c.Steps[i-1].Sequence:
				msg = fmt.Sprintf("step %d is numbered twice", step.Sequence)
			case step.Sequence != i+1:
				msg = fmt.Sprintf("step %d is out of order; expected step %d", step.Sequence, i+1)
			default:
				continue
			}
			out = append(out, Finding{Path: c.Origin.Path, Line: step.Line, Message: msg})
		}
	}
	return out
}

var handlebarsPattern = regexp.MustCompile(`\{\{~?\s*(?:[#/](?:if|each|unless)\b|else\b)[^}]*\}\}`)

// promptFences returns the fenced blocks holding prompt examples. Blocks
// tagged handlebars or hbs show the legacy syntax on purpose.
func promptFences(o docs.Origin) []docs.Fence {
	var out []docs.Fence
	for _, f := range o.Fences {
		switch f.Info {
		case "handlebars", "hbs":
			continue
		}
		out = append(out, f)
	}
	return out
}

func checkTemplateSyntax(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, o := range allOrigins(store) {
		fences := promptFences(o)
		if len(fences) == 0 {
			continue
		}
		lines := strings.Split(o.Content, "\n")
		for _, f := range fences {
			for n := f.Start; n <= f.End && n <= len(lines); n++ {
				if m := handlebarsPattern.FindString(lines[n-1]); m != "" {
					out = append(out, Finding{
						Path:    o.Path,
						Line:    n,
						Message: fmt.Sprintf("Handlebars fragment %q; use {%% %%} tags", strings.TrimSpace(m)),
					})
				}
			}
		}
	}
	return out
}

// fixTemplateSyntax converts Handlebars inside prompt example blocks only;
// prose explaining the old syntax is left as written.
func fixTemplateSyntax(o docs.Origin, content string) (string, bool) {
	fences := promptFences(o)
	lines := strings.Split(content, "\n")
	changed := false
	// last block first so earlier line numbers stay valid
	for i := len(fences) - 1; i >= 0; i-- {
		f := fences[i]
		if f.End > len(lines) {
			continue
		}
		converted, ok := ConvertHandlebars(strings.Join(lines[f.Start-1:f.End], "\n"))
		if !ok {
			continue
		}
		rest := append(strings.Split(converted, "\n"), lines[f.End:]...)
		lines = append(lines[:f.Start-1], rest...)
		changed = true
	}
	return strings.Join(lines, "\n"), changed
}

func knownModel(model string, tiers []string) bool {
	model = strings.ToLower(model)
	for _, tier := range tiers {
		tier = strings.ToLower(tier)
		if model == tier || strings.Contains(model, tier) {
			return true
		}
	}
	return false
}

func checkModelTier(store *docs.Store, cfg Config) []Finding {
	if len(cfg.Models) == 0 {
		return nil
	}
	var out []Finding
	check := func(o docs.Origin, model string) {
		if model != "" && !knownModel(model, cfg.Models) {
			out = append(out, Finding{
				Path:    o.Path,
				Line:    o.Line("model"),
				Message: fmt.Sprintf("model '%s' is not one of %s", model, strings.Join(cfg.Models, ", ")),
			})
		}
	}
	for _, c := range store.Commands() {
		check(c.Origin, c.Model)
	}
	for _, a := range store.Agents() {
		check(a.Origin, a.Model)
	}
	return out
}

// toolName strips an argument pattern: Bash(npx output:*) is Bash
func toolName(tool string) string {
	if i := strings.Index(tool, "("); i >= 0 {
		tool = tool[:i]
	}
	return strings.TrimSpace(tool)
}

func checkUnknownTools(store *docs.Store, cfg Config) []Finding {
	if len(cfg.Tools) == 0 {
		return nil
	}
	known := map[string]bool{}
	for _, t := range cfg.Tools {
		known[t] = true
	}

	var out []Finding
	check := func(o docs.Origin, key string, tools []string) {
		for _, t := range tools {
			name := toolName(t)
			if name == "" || known[name] || strings.HasPrefix(name, "mcp__") {
				continue
			}
			out = append(out, Finding{Path: o.Path, Line: o.Line(key), Message: fmt.Sprintf("unknown tool '%s'", name)})
		}
	}
	for _, c := range store.Commands() {
		check(c.Origin, "allowed-tools", c.AllowedTools)
	}
	for _, a := range store.Agents() {
		check(a.Origin, "tools", a.Tools)
	}
	for _, s := range store.Skills() {
		check(s.Origin, "allowed-tools", s.AllowedTools)
	}
	return out
}

func checkDuplicates(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, d := range store.Duplicates() {
		out = append(out, Finding{
			Path:    d.Path,
			Line:    1,
			Message: fmt.Sprintf("%s '%s' is already defined in %s", d.Kind, d.Name, d.First),
		})
	}
	return out
}

func checkManifestSources(store *docs.Store, _ Config) []Finding {
	var out []Finding
	for _, m := range store.Marketplaces() {
		content, _ := os.ReadFile(m.Path)
		for _, p := range m.Plugins {
			dir, local := m.SourceDir(p)
			if !local {
				continue
			}
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				continue
			}
			out = append(out, Finding{
				Path:    m.Path,
				Line:    lineOf(string(content), p.Source.Path),
				Message: fmt.Sprintf("plugin '%s' source '%s' does not exist", p.Name, p.Source.Path),
			})
		}
	}
	return out
}

func lineOf(content, needle string) int {
	if needle == "" {
		return 1
	}
	if i := strings.Index(content, needle); i >= 0 {
		return strings.Count(content[:i], "\n") + 1
	}
	return 1
}
