package docs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	stepHeadingPattern = regexp.MustCompile(`(?i)^step\s+(\d+)\s*[:.\-–—]\s*(.+?)\s*$`)

	subagentPatterns = []*regexp.Regexp{
		regexp.MustCompile("`@?([A-Za-z0-9][\\w:.-]*)`\\s+(?:sub-?agent|agent)\\b"),
		regexp.MustCompile(`(?i)\bthe\s+([a-z0-9]+(?:-[a-z0-9]+)+)\s+sub-?agent\b`),
		regexp.MustCompile(`@agent-([A-Za-z0-9][\w:-]*[A-Za-z0-9])`),
		regexp.MustCompile("(?i)\\bsub-?agent:\\s*`?([A-Za-z0-9][\\w:-]*)`?"),
	}

	skillRefPatterns = []*regexp.Regexp{
		regexp.MustCompile("`([A-Za-z0-9][\\w:.-]*)`\\s+skill\\b"),
		regexp.MustCompile("(?i)\\bskill\\s+`([A-Za-z0-9][\\w:.-]*)`"),
		regexp.MustCompile(`skills/([A-Za-z0-9][\w.-]*)/SKILL\.md`),
	}

	codeSpanPattern = regexp.MustCompile("`([^`\\n]+)`")

	branchPattern = regexp.MustCompile(`(?i)^\s*(?:[-*+]\s+|\d+[.)]\s+)?(?:\*\*)?if(?:\*\*)?\s+(.+?),\s*(.+?);\s*(?:otherwise|else)\b[,:]?\s*(.+?)\s*$`)

	bodyTriggerPattern = regexp.MustCompile("(?i)^\\s*[-*+]\\s+(?:\\*\\*)?([^:*`\\n]+?)(?:\\*\\*)?\\s*:.*?\\b(?:use|invoke|load|apply)\\s+(?:the\\s+)?`([A-Za-z0-9][\\w:.-]*)`")
)

// lineAt returns the 1-based line of byte offset off in s, shifted by first
func lineAt(s string, off, first int) int {
	return first + strings.Count(s[:off], "\n")
}

// findSubagent returns the first subagent designation in s
func findSubagent(s string, firstLine int) (string, int) {
	best, name := -1, ""
	for _, re := range subagentPatterns {
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			name = s[loc[2]:loc[3]]
		}
	}
	if best == -1 {
		return "", 0
	}
	return name, lineAt(s, best, firstLine)
}

// findSkillRefs returns every distinct skill mentioned in s, in order of first appearance
func findSkillRefs(s string, firstLine int) []SkillRef {
	type hit struct {
		off  int
		name string
	}
	var hits []hit
	for _, re := range skillRefPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
			hits = append(hits, hit{off: loc[0], name: s[loc[2]:loc[3]]})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].off < hits[j].off })

	seen := map[string]bool{}
	var refs []SkillRef
	for _, h := range hits {
		if seen[h.name] {
			continue
		}
		seen[h.name] = true
		refs = append(refs, SkillRef{Name: h.name, Line: lineAt(s, h.off, firstLine)})
	}
	return refs
}

// findOutputTemplate returns the first code span naming a Markdown file path
func findOutputTemplate(s string) string {
	for _, m := range codeSpanPattern.FindAllStringSubmatch(s, -1) {
		v := strings.TrimSpace(m[1])
		if strings.ContainsAny(v, " \t") || !strings.Contains(v, "/") || !strings.HasSuffix(v, ".md") {
			continue
		}
		if strings.HasSuffix(v, "/SKILL.md") {
			continue
		}
		return v
	}
	return ""
}

// findBranches returns the "If X, Y; otherwise Z" lines in s
func findBranches(s string, firstLine int) []Branch {
	var branches []Branch
	for i, line := range strings.Split(s, "\n") {
		m := branchPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		branches = append(branches, Branch{
			Condition: cleanClause(m[1]),
			Then:      cleanClause(m[2]),
			Else:      cleanClause(m[3]),
			Line:      firstLine + i,
		})
	}
	return branches
}

func cleanClause(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "."))
}

// findBodyTriggers reads list items such as
// "- Writing prompts: use the `output-prompts` skill"
func findBodyTriggers(s string, firstLine int) []Trigger {
	var triggers []Trigger
	for i, line := range strings.Split(s, "\n") {
		m := bodyTriggerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		triggers = append(triggers, Trigger{
			When:  strings.TrimSpace(m[1]),
			Skill: m[2],
			Line:  firstLine + i,
		})
	}
	return triggers
}

// frontmatterTriggers normalises the agent `skills` key, which is either a
// map of trigger to skill or a plain list of skill names.
func frontmatterTriggers(v any, line int) []Trigger {
	var triggers []Trigger
	add := func(when, skill string) {
		when, skill = strings.TrimSpace(when), strings.TrimSpace(skill)
		if skill == "" {
			return
		}
		if when == "" {
			when = skill
		}
		triggers = append(triggers, Trigger{When: when, Skill: skill, Line: line})
	}

	switch val := v.(type) {
	case string:
		for _, name := range splitList(val) {
			add(name, name)
		}
	case []any:
		for _, item := range val {
			switch it := item.(type) {
			case string:
				add(it, it)
			case map[string]any, map[any]any:
				triggers = append(triggers, frontmatterTriggers(it, line)...)
			}
		}
	case map[string]any:
		for k, s := range val {
			add(k, fmt.Sprint(s))
		}
	case map[any]any:
		for k, s := range val {
			add(fmt.Sprint(k), fmt.Sprint(s))
		}
	}

	sort.SliceStable(triggers, func(i, j int) bool { return triggers[i].When < triggers[j].When })
	return triggers
}

// headingText strips ATX closing hashes and emphasis markers
func headingText(s string) string {
	s = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "#"))
	return strings.TrimSpace(strings.NewReplacer("**", "", "__", "").Replace(s))
}
