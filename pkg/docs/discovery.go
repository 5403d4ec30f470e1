package docs

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/pkg/errors"
)

const (
	manifestDir         = ".claude-plugin"
	marketplaceFileName = "marketplace.json"
	pluginFileName      = "plugin.json"
	skillFileName       = "SKILL.md"

	commandsGlob = "commands/**/*.md"
	agentsGlob   = "agents/*.md"
	skillsGlob   = "skills/*/" + skillFileName
)

// Author identifies a plugin or marketplace owner
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// PluginManifest is .claude-plugin/plugin.json
type PluginManifest struct {
	Name        string  `json:"name"`
	Version     string  `json:"version,omitempty"`
	Description string  `json:"description,omitempty"`
	Author      *Author `json:"author,omitempty"`
}

// PluginSource is a marketplace plugin location: a path relative to the
// marketplace root, or a remote repository.
type PluginSource struct {
	Path   string `json:"path,omitempty"`
	Remote string `json:"remote,omitempty"`
}

// UnmarshalJSON accepts either a string path or a {"source": ..., "repo": ...} object
func (s *PluginSource) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &s.Path)
	}
	var obj struct {
		Repo string `json:"repo"`
		URL  string `json:"url"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.Path = obj.Path
	s.Remote = obj.Repo
	if s.Remote == "" {
		s.Remote = obj.URL
	}
	return nil
}

// MarketplacePlugin is one entry of marketplace.json
type MarketplacePlugin struct {
	Name        string       `json:"name"`
	Source      PluginSource `json:"source"`
	Description string       `json:"description,omitempty"`
	Version     string       `json:"version,omitempty"`
}

// Marketplace is .claude-plugin/marketplace.json at a bundle root
type Marketplace struct {
	Name    string              `json:"name"`
	Owner   *Author             `json:"owner,omitempty"`
	Plugins []MarketplacePlugin `json:"plugins"`
	Path    string              `json:"-"`
	Root    string              `json:"-"`
}

// SourceDir resolves a local plugin source against the marketplace root
func (m *Marketplace) SourceDir(p MarketplacePlugin) (string, bool) {
	if p.Source.Path == "" {
		return "", false
	}
	if filepath.IsAbs(p.Source.Path) {
		return p.Source.Path, true
	}
	return filepath.Join(m.Root, filepath.FromSlash(p.Source.Path)), true
}

// Plugin is a directory holding commands/, agents/ and skills/
type Plugin struct {
	Name     string          `json:"name"`
	Dir      string          `json:"dir"`
	Root     string          `json:"root"`
	Manifest *PluginManifest `json:"manifest,omitempty"`
}

// file is one document found during discovery
type file struct {
	kind   Kind
	path   string
	root   string
	plugin string
	slug   string
}

// Discovery locates plugins and documents beneath a set of roots. Earlier
// roots take precedence over later ones.
type Discovery struct {
	roots   []string
	include []string
	exclude []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithRoots sets the bundle roots to search
func WithRoots(roots ...string) Option {
	return func(d *Discovery) error {
		d.roots = nil
		seen := map[string]bool{}
		for _, root := range roots {
			abs, err := filepath.Abs(root)
			if err != nil {
				return errors.Wrapf(err, "failed to resolve root '%s'", root)
			}
			if seen[abs] {
				continue
			}
			seen[abs] = true
			d.roots = append(d.roots, abs)
		}
		return nil
	}
}

// WithInclude keeps only documents whose root-relative path matches one of patterns
func WithInclude(patterns ...string) Option {
	return func(d *Discovery) error {
		if err := validatePatterns(patterns); err != nil {
			return err
		}
		d.include = patterns
		return nil
	}
}

// WithExclude drops documents whose root-relative path matches one of patterns
func WithExclude(patterns ...string) Option {
	return func(d *Discovery) error {
		if err := validatePatterns(patterns); err != nil {
			return err
		}
		d.exclude = patterns
		return nil
	}
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return errors.Errorf("invalid glob pattern '%s'", p)
		}
	}
	return nil
}

// NewDiscovery creates a discovery rooted at the current directory unless
// WithRoots says otherwise.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}
	if err := WithRoots(".")(d); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Roots returns the absolute bundle roots
func (d *Discovery) Roots() []string {
	return d.roots
}

// Plugins finds every plugin and marketplace manifest beneath the roots
func (d *Discovery) Plugins(ctx context.Context) ([]Plugin, []*Marketplace, []Broken) {
	var (
		plugins      []Plugin
		marketplaces []*Marketplace
		broken       []Broken
		seen         = map[string]bool{}
	)

	add := func(root, dir, fallbackName string) {
		if seen[dir] {
			return
		}
		seen[dir] = true
		p := Plugin{Name: fallbackName, Dir: dir, Root: root}
		manifest, err := readPluginManifest(dir)
		switch {
		case err != nil:
			broken = append(broken, Broken{Kind: KindManifest, Path: filepath.Join(dir, manifestDir, pluginFileName), Plugin: fallbackName, Err: err})
		case manifest != nil:
			p.Manifest = manifest
			if manifest.Name != "" {
				p.Name = manifest.Name
			}
		}
		plugins = append(plugins, p)
	}

	for _, root := range d.roots {
		log := logger.G(ctx).WithField("root", root)

		market, err := readMarketplace(root)
		if err != nil {
			broken = append(broken, Broken{Kind: KindManifest, Path: filepath.Join(root, manifestDir, marketplaceFileName), Err: err})
		} else if market != nil {
			marketplaces = append(marketplaces, market)
		}

		if isPluginDir(root) {
			add(root, root, filepath.Base(root))
		}

		pluginsDir := filepath.Join(root, "plugins")
		_ = filepath.WalkDir(pluginsDir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || !entry.IsDir() || path == pluginsDir {
				return nil
			}
			if !isPluginDir(path) {
				return nil
			}
			add(root, path, entry.Name())
			return filepath.SkipDir
		})

		if market != nil {
			for _, mp := range market.Plugins {
				dir, ok := market.SourceDir(mp)
				if !ok {
					continue
				}
				if info, err := os.Stat(dir); err == nil && info.IsDir() {
					add(root, filepath.Clean(dir), mp.Name)
				}
			}
		}

		log.WithField("plugins", len(plugins)).Debug("discovered plugins")
	}

	return plugins, marketplaces, broken
}

// files lists the documents of every plugin, honouring include and exclude
func (d *Discovery) files(plugins []Plugin) ([]file, error) {
	var files []file
	multi := len(plugins) > 1

	for _, p := range plugins {
		fsys := os.DirFS(p.Dir)
		for _, g := range []struct {
			kind    Kind
			pattern string
		}{
			{KindCommand, commandsGlob},
			{KindAgent, agentsGlob},
			{KindSkill, skillsGlob},
		} {
			matches, err := doublestar.Glob(fsys, g.pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to glob %s in %s", g.pattern, p.Dir)
			}
			sort.Strings(matches)

			for _, match := range matches {
				path := filepath.Join(p.Dir, filepath.FromSlash(match))
				ok, err := d.selected(p.Root, path)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
				f := file{kind: g.kind, path: path, root: p.Root, plugin: p.Name}
				if g.kind == KindCommand {
					f.slug = commandSlug(match, p.Name, multi)
				}
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func (d *Discovery) selected(root, path string) (bool, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to relativise '%s'", path)
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range d.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false, nil
		}
	}
	if len(d.include) == 0 {
		return true, nil
	}
	for _, pattern := range d.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true, nil
		}
	}
	return false, nil
}

// commandSlug turns commands/flow/convert.md into flow:convert
func commandSlug(match, plugin string, prefixed bool) string {
	slug := strings.TrimSuffix(strings.TrimPrefix(match, "commands/"), ".md")
	slug = strings.ReplaceAll(slug, "/", ":")
	if prefixed {
		slug = plugin + ":" + slug
	}
	return slug
}

func isPluginDir(dir string) bool {
	for _, sub := range []string{"commands", "agents", "skills", filepath.Join(manifestDir, pluginFileName)} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err == nil {
			return true
		}
	}
	return false
}

func readPluginManifest(dir string) (*PluginManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestDir, pluginFileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read plugin manifest")
	}
	var m PluginManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse plugin manifest")
	}
	return &m, nil
}

func readMarketplace(root string) (*Marketplace, error) {
	path := filepath.Join(root, manifestDir, marketplaceFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read marketplace manifest")
	}
	var m Marketplace
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse marketplace manifest")
	}
	m.Path = path
	m.Root = root
	return &m, nil
}
