// Package docs loads and indexes a plugin bundle: slash-command documents,
// subagent personas and skill modules written as Markdown with YAML
// frontmatter, plus the marketplace and plugin manifests that tie them
// together. Documents are immutable once a Store has been loaded.
package docs

import (
	"strings"
	"time"
)

// Kind identifies the type of a plugin document
type Kind string

// Document kinds
const (
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
	KindSkill   Kind = "skill"

	// KindManifest only appears on Broken entries for unreadable JSON manifests
	KindManifest Kind = "manifest"
)

// ParseKind converts a user supplied kind, accepting plurals
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "command", "commands", "cmd":
		return KindCommand, true
	case "agent", "agents", "subagent":
		return KindAgent, true
	case "skill", "skills":
		return KindSkill, true
	}
	return "", false
}

// Origin records where a document came from and where its parts live in the
// source file, so that lint findings can point at lines.
type Origin struct {
	Path        string         `json:"path"`
	Root        string         `json:"root"`
	Plugin      string         `json:"plugin"`
	Frontmatter bool           `json:"frontmatter"`
	KeyLines    map[string]int `json:"-"`
	Meta        map[string]any `json:"-"`
	BodyLine    int            `json:"-"`
	Content     string         `json:"-"`
	Fences      []Fence        `json:"-"`
	ModTime     time.Time      `json:"-"`
}

// Line returns the 1-based line of a frontmatter key, or 1 when the key is absent
func (o Origin) Line(key string) int {
	if l, ok := o.KeyLines[key]; ok {
		return l
	}
	return 1
}

// Has reports whether the frontmatter sets key to a non-empty value
func (o Origin) Has(key string) bool {
	v, ok := o.Meta[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// CommandFrontmatter is the YAML header of a slash-command document
type CommandFrontmatter struct {
	ArgumentHint string   `mapstructure:"argument-hint" json:"argument-hint" jsonschema:"description=Placeholder text describing the command arguments"`
	Description  string   `mapstructure:"description" json:"description" jsonschema:"description=One line summary of the command"`
	Model        string   `mapstructure:"model" json:"model" jsonschema:"description=Model tier the command runs on"`
	AllowedTools []string `mapstructure:"allowed-tools" json:"allowed-tools,omitempty" jsonschema:"description=Tools the command may use"`
}

// AgentFrontmatter is the YAML header of a subagent persona document
type AgentFrontmatter struct {
	Name        string   `mapstructure:"name" json:"name" jsonschema:"description=Subagent identifier referenced by command steps"`
	Description string   `mapstructure:"description" json:"description" jsonschema:"description=When the subagent should be used"`
	Tools       []string `mapstructure:"tools" json:"tools,omitempty" jsonschema:"description=Tools the subagent may use"`
	Model       string   `mapstructure:"model" json:"model,omitempty" jsonschema:"description=Model tier for the subagent"`
	Skills      any      `mapstructure:"skills" json:"skills,omitempty" jsonschema:"description=Map of situational trigger to skill name or a list of skill names"`
}

// SkillFrontmatter is the YAML header of a SKILL.md document
type SkillFrontmatter struct {
	Name         string   `mapstructure:"name" json:"name" jsonschema:"description=Skill identifier; must equal its directory name"`
	Description  string   `mapstructure:"description" json:"description" jsonschema:"description=When the skill applies"`
	AllowedTools []string `mapstructure:"allowed-tools" json:"allowed-tools,omitempty" jsonschema:"description=Tools the skill may use"`
}

// CommandDoc is a slash-command document with its ordered steps
type CommandDoc struct {
	Slug string `json:"slug"`
	CommandFrontmatter
	Steps  []Step     `json:"steps"`
	Skills []SkillRef `json:"skills,omitempty"`
	Body   string     `json:"-"`
	Origin Origin     `json:"origin"`
}

// Step is one numbered heading of a command document
type Step struct {
	Sequence       int        `json:"sequence"`
	Name           string     `json:"name"`
	Subagent       string     `json:"subagent,omitempty"`
	Instructions   string     `json:"instructions"`
	OutputTemplate string     `json:"output_template,omitempty"`
	Branches       []Branch   `json:"branches,omitempty"`
	Skills         []SkillRef `json:"skills,omitempty"`
	Line           int        `json:"line"`
	SubagentLine   int        `json:"-"`
}

// Branch is a conditional sentence inside a step. Its condition is judged by
// the assistant carrying out the plan, never evaluated here.
type Branch struct {
	Condition string `json:"condition"`
	Then      string `json:"then"`
	Else      string `json:"else"`
	Line      int    `json:"line"`
}

// SkillRef is a skill name mentioned in a document body
type SkillRef struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// Trigger maps a situation an agent recognises to the skill it invokes
type Trigger struct {
	When  string `json:"when"`
	Skill string `json:"skill"`
	Line  int    `json:"line"`
}

// AgentDoc is a subagent persona document
type AgentDoc struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Tools       []string   `json:"tools,omitempty"`
	Model       string     `json:"model,omitempty"`
	Triggers    []Trigger  `json:"triggers,omitempty"`
	Skills      []SkillRef `json:"skills,omitempty"`
	Body        string     `json:"-"`
	Origin      Origin     `json:"origin"`
}

// SkillDoc is a skill knowledge module loaded from skills/<name>/SKILL.md
type SkillDoc struct {
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	AllowedTools []string   `json:"allowed_tools,omitempty"`
	Dir          string     `json:"dir"`
	Skills       []SkillRef `json:"skills,omitempty"`
	Body         string     `json:"-"`
	Origin       Origin     `json:"origin"`
}

// Broken is a document that could not be parsed
type Broken struct {
	Kind   Kind   `json:"kind"`
	Path   string `json:"path"`
	Plugin string `json:"plugin"`
	Err    error  `json:"-"`
}

// Duplicate records a second document claiming an already indexed name
// within the same root.
type Duplicate struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Path  string `json:"path"`
	First string `json:"first"`
}

// Summary is the listing view of any document
type Summary struct {
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Plugin      string `json:"plugin"`
	Path        string `json:"path"`
}
