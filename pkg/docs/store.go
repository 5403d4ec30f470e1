package docs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Store is the loaded, read-only index of a plugin bundle
type Store struct {
	roots        []string
	plugins      []Plugin
	marketplaces []*Marketplace
	commands     map[string]*CommandDoc
	agents       map[string]*AgentDoc
	skills       map[string]*SkillDoc
	broken       []Broken
	duplicates   []Duplicate
}

// Load discovers and parses every document beneath roots
func Load(ctx context.Context, roots ...string) (*Store, error) {
	d, err := NewDiscovery(WithRoots(roots...))
	if err != nil {
		return nil, err
	}
	return d.Load(ctx)
}

// Load parses every discovered document. Documents that fail to parse are
// recorded as Broken and their errors are returned as a multierror alongside
// a usable store.
func (d *Discovery) Load(ctx context.Context) (*Store, error) {
	var (
		store  *Store
		result *multierror.Error
	)

	err := telemetry.WithSpan(ctx, "docs.load", func(ctx context.Context) error {
		plugins, marketplaces, broken := d.Plugins(ctx)
		files, err := d.files(plugins)
		if err != nil {
			return err
		}

		store = &Store{
			roots:        d.roots,
			plugins:      plugins,
			marketplaces: marketplaces,
			commands:     map[string]*CommandDoc{},
			agents:       map[string]*AgentDoc{},
			skills:       map[string]*SkillDoc{},
		}
		for _, b := range broken {
			store.broken = append(store.broken, b)
			result = multierror.Append(result, errors.Wrap(b.Err, b.Path))
		}

		for _, f := range files {
			if err := store.add(ctx, f); err != nil {
				store.broken = append(store.broken, Broken{Kind: f.kind, Path: f.path, Plugin: f.plugin, Err: err})
				result = multierror.Append(result, errors.Wrap(err, f.path))
			}
		}

		telemetry.SetAttributes(ctx,
			attribute.Int("docs.commands", len(store.commands)),
			attribute.Int("docs.agents", len(store.agents)),
			attribute.Int("docs.skills", len(store.skills)),
			attribute.Int("docs.broken", len(store.broken)),
		)
		logger.G(ctx).WithFields(map[string]any{
			"commands": len(store.commands),
			"agents":   len(store.agents),
			"skills":   len(store.skills),
			"broken":   len(store.broken),
		}).Debug("loaded plugin documents")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return store, result.ErrorOrNil()
}

func (s *Store) add(ctx context.Context, f file) error {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrap(err, "failed to read document")
	}
	d, err := parseMarkdown(content)
	if err != nil {
		return err
	}

	origin := Origin{
		Path:        f.path,
		Root:        f.root,
		Plugin:      f.plugin,
		Frontmatter: d.frontmatter,
		KeyLines:    d.keyLines,
		Meta:        d.meta,
		BodyLine:    d.bodyLine,
		Content:     string(d.source),
		Fences:      collectFences(d.root, d.source),
	}
	if info, err := os.Stat(f.path); err == nil {
		origin.ModTime = info.ModTime()
	}

	switch f.kind {
	case KindCommand:
		cmd, err := newCommand(f.slug, d, origin)
		if err != nil {
			return err
		}
		if prev, ok := s.commands[cmd.Slug]; ok {
			s.collide(ctx, KindCommand, cmd.Slug, prev.Origin, origin)
			return nil
		}
		s.commands[cmd.Slug] = cmd
	case KindAgent:
		agent, err := newAgent(d, origin)
		if err != nil {
			return err
		}
		if prev, ok := s.agents[agent.Name]; ok {
			s.collide(ctx, KindAgent, agent.Name, prev.Origin, origin)
			return nil
		}
		s.agents[agent.Name] = agent
	case KindSkill:
		skill, err := newSkill(d, origin)
		if err != nil {
			return err
		}
		if prev, ok := s.skills[skill.Name]; ok {
			s.collide(ctx, KindSkill, skill.Name, prev.Origin, origin)
			return nil
		}
		s.skills[skill.Name] = skill
	}
	return nil
}

// collide records a duplicate within one root. Across roots the earlier root
// shadows the later one.
func (s *Store) collide(ctx context.Context, kind Kind, name string, first, next Origin) {
	if first.Root == next.Root {
		s.duplicates = append(s.duplicates, Duplicate{Kind: kind, Name: name, Path: next.Path, First: first.Path})
		return
	}
	logger.G(ctx).WithFields(map[string]any{
		"kind":     kind,
		"name":     name,
		"path":     next.Path,
		"shadowed": first.Path,
	}).Debug("document shadowed by earlier root")
}

func newCommand(slug string, d *parsedDoc, origin Origin) (*CommandDoc, error) {
	cmd := &CommandDoc{Slug: slug, Body: d.body, Origin: origin}
	if err := decodeFrontmatter(d.meta, &cmd.CommandFrontmatter); err != nil {
		return nil, err
	}
	cmd.Steps = parseSteps(d)
	cmd.Skills = findSkillRefs(d.body, d.bodyLine)
	return cmd, nil
}

func newAgent(d *parsedDoc, origin Origin) (*AgentDoc, error) {
	var fm AgentFrontmatter
	if err := decodeFrontmatter(d.meta, &fm); err != nil {
		return nil, err
	}

	name := fm.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(origin.Path), ".md")
	}

	triggers := frontmatterTriggers(fm.Skills, origin.Line("skills"))
	triggers = append(triggers, findBodyTriggers(d.body, d.bodyLine)...)

	skills := findSkillRefs(d.body, d.bodyLine)
	for _, t := range triggers {
		skills = appendSkillRef(skills, SkillRef{Name: t.Skill, Line: t.Line})
	}

	return &AgentDoc{
		Name:        name,
		Description: fm.Description,
		Tools:       fm.Tools,
		Model:       fm.Model,
		Triggers:    triggers,
		Skills:      skills,
		Body:        d.body,
		Origin:      origin,
	}, nil
}

func newSkill(d *parsedDoc, origin Origin) (*SkillDoc, error) {
	var fm SkillFrontmatter
	if err := decodeFrontmatter(d.meta, &fm); err != nil {
		return nil, err
	}

	dir := filepath.Dir(origin.Path)
	name := fm.Name
	if name == "" {
		name = filepath.Base(dir)
	}

	return &SkillDoc{
		Name:         name,
		Description:  fm.Description,
		AllowedTools: fm.AllowedTools,
		Dir:          dir,
		Skills:       findSkillRefs(d.body, d.bodyLine),
		Body:         d.body,
		Origin:       origin,
	}, nil
}

func appendSkillRef(refs []SkillRef, ref SkillRef) []SkillRef {
	for _, r := range refs {
		if r.Name == ref.Name {
			return refs
		}
	}
	return append(refs, ref)
}

// Roots returns the absolute roots the store was loaded from
func (s *Store) Roots() []string { return s.roots }

// Plugins returns the discovered plugins
func (s *Store) Plugins() []Plugin { return s.plugins }

// Marketplaces returns every marketplace manifest found at a root
func (s *Store) Marketplaces() []*Marketplace { return s.marketplaces }

// Manifest describes the plugins of the bundle and the marketplaces listing them
type Manifest struct {
	Plugins      []Plugin       `json:"plugins"`
	Marketplaces []*Marketplace `json:"marketplaces,omitempty"`
}

// Manifest returns the plugins and marketplaces found during discovery
func (s *Store) Manifest() Manifest {
	return Manifest{Plugins: s.plugins, Marketplaces: s.marketplaces}
}

// Broken returns documents that failed to parse
func (s *Store) Broken() []Broken { return s.broken }

// Duplicates returns documents that reused a name within the same root
func (s *Store) Duplicates() []Duplicate { return s.duplicates }

// Command looks up a command by slug. A leading slash is ignored. An
// unprefixed slug matches when exactly one plugin of the earliest root
// providing it has the command; later roots are shadowed.
func (s *Store) Command(slug string) (*CommandDoc, error) {
	slug = strings.TrimPrefix(strings.TrimSpace(slug), "/")
	if cmd, ok := s.commands[slug]; ok {
		return cmd, nil
	}

	var candidates []*CommandDoc
	for key, cmd := range s.commands {
		if strings.HasSuffix(key, ":"+slug) {
			candidates = append(candidates, cmd)
		}
	}
	candidates = s.earliestRoot(candidates)
	switch len(candidates) {
	case 0:
		return nil, errors.Errorf("command '%s' not found", slug)
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.Slug)
		}
		sort.Strings(names)
		return nil, errors.Errorf("command '%s' is ambiguous: %s", slug, strings.Join(names, ", "))
	}
}

// earliestRoot keeps the candidates from the first root, in root order, that
// provides any of them
func (s *Store) earliestRoot(candidates []*CommandDoc) []*CommandDoc {
	if len(candidates) < 2 {
		return candidates
	}
	rank := make(map[string]int, len(s.roots))
	for i, r := range s.roots {
		rank[r] = i
	}
	best := -1
	for _, c := range candidates {
		if r, ok := rank[c.Origin.Root]; ok && (best < 0 || r < best) {
			best = r
		}
	}
	if best < 0 {
		return candidates
	}
	var out []*CommandDoc
	for _, c := range candidates {
		if r, ok := rank[c.Origin.Root]; ok && r == best {
			out = append(out, c)
		}
	}
	return out
}

// Agent looks up an agent by name
func (s *Store) Agent(name string) (*AgentDoc, bool) {
	a, ok := s.agents[name]
	return a, ok
}

// Skill looks up a skill by name
func (s *Store) Skill(name string) (*SkillDoc, bool) {
	sk, ok := s.skills[name]
	return sk, ok
}

// Commands returns all commands sorted by slug
func (s *Store) Commands() []*CommandDoc {
	out := make([]*CommandDoc, 0, len(s.commands))
	for _, c := range s.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Agents returns all agents sorted by name
func (s *Store) Agents() []*AgentDoc {
	out := make([]*AgentDoc, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Skills returns all skills sorted by name
func (s *Store) Skills() []*SkillDoc {
	out := make([]*SkillDoc, 0, len(s.skills))
	for _, sk := range s.skills {
		out = append(out, sk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Summaries lists documents of the given kinds, or of every kind when none are given
func (s *Store) Summaries(kinds ...Kind) []Summary {
	want := func(k Kind) bool {
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

	var out []Summary
	if want(KindCommand) {
		for _, c := range s.Commands() {
			out = append(out, Summary{Kind: KindCommand, Name: c.Slug, Description: c.Description, Plugin: c.Origin.Plugin, Path: c.Origin.Path})
		}
	}
	if want(KindAgent) {
		for _, a := range s.Agents() {
			out = append(out, Summary{Kind: KindAgent, Name: a.Name, Description: a.Description, Plugin: a.Origin.Plugin, Path: a.Origin.Path})
		}
	}
	if want(KindSkill) {
		for _, sk := range s.Skills() {
			out = append(out, Summary{Kind: KindSkill, Name: sk.Name, Description: sk.Description, Plugin: sk.Origin.Plugin, Path: sk.Origin.Path})
		}
	}
	return out
}

// Lookup returns the document of kind named name
func (s *Store) Lookup(kind Kind, name string) (any, error) {
	switch kind {
	case KindCommand:
		return s.Command(name)
	case KindAgent:
		if a, ok := s.Agent(name); ok {
			return a, nil
		}
		return nil, errors.Errorf("agent '%s' not found", name)
	case KindSkill:
		if sk, ok := s.Skill(name); ok {
			return sk, nil
		}
		return nil, errors.Errorf("skill '%s' not found", name)
	}
	return nil, errors.Errorf("unknown document kind '%s'", kind)
}
