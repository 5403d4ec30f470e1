// Package watch reloads and re-lints a plugin bundle whenever one of its
// documents or manifests changes on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultDebounce collapses bursts of editor writes into one reload
const DefaultDebounce = 300 * time.Millisecond

// Config holds the configuration for a watcher
type Config struct {
	Roots      []string
	Include    []string
	Exclude    []string
	Debounce   time.Duration
	IgnoreDirs []string
	Lint       lint.Config
}

// NewConfig creates a watch config with default values
func NewConfig() Config {
	return Config{
		Roots:      []string{"."},
		Debounce:   DefaultDebounce,
		IgnoreDirs: []string{".git", "node_modules"},
		Lint:       lint.DefaultConfig(),
	}
}

// Validate checks the watch config
func (c Config) Validate() error {
	if len(c.Roots) == 0 {
		return errors.New("at least one root is required")
	}
	if c.Debounce < 0 {
		return errors.Errorf("debounce cannot be negative: %s", c.Debounce)
	}
	return nil
}

// Event is delivered after every reload
type Event struct {
	Paths   []string
	Time    time.Time
	Store   *docs.Store
	Report  *lint.Report
	LoadErr error
}

// Watcher reloads the bundle on change
type Watcher struct {
	cfg Config
}

// New creates a watcher from a validated config
func New(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Watcher{cfg: cfg}, nil
}

// Run delivers an initial event, then one event per debounced batch of
// changes, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onChange func(Event)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer fsw.Close()

	for _, root := range w.cfg.Roots {
		if err := w.addRecursive(ctx, fsw, root); err != nil {
			return errors.Wrapf(err, "failed to watch %s", root)
		}
	}
	logger.G(ctx).WithField("roots", w.cfg.Roots).Info("watching plugin documents")

	onChange(w.reload(ctx, nil))

	d := newDebouncer(w.cfg.Debounce)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(ctx, fsw, event.Name); err != nil {
						logger.G(ctx).WithError(err).WithField("directory", event.Name).Warn("failed to watch new directory")
					}
					d.add(event.Name)
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 || !w.relevant(event.Name) {
				continue
			}
			logger.G(ctx).WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("file change detected")
			d.add(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-d.C():
			onChange(w.reload(ctx, d.flush()))
		case <-ctx.Done():
			d.stop()
			return nil
		}
	}
}

func (w *Watcher) reload(ctx context.Context, paths []string) Event {
	ev := Event{Paths: paths, Time: time.Now()}

	d, err := docs.NewDiscovery(docs.WithRoots(w.cfg.Roots...), docs.WithInclude(w.cfg.Include...), docs.WithExclude(w.cfg.Exclude...))
	if err != nil {
		ev.LoadErr = err
		return ev
	}
	ev.Store, ev.LoadErr = d.Load(ctx)
	if ev.Store != nil {
		ev.Report = lint.Run(ctx, ev.Store, w.cfg.Lint)
	}
	return ev
}

func (w *Watcher) ignored(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		for _, dir := range w.cfg.IgnoreDirs {
			if part == dir {
				return true
			}
		}
	}
	return false
}

// relevant keeps Markdown documents and JSON manifests outside ignored directories
func (w *Watcher) relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".json":
		return true
	}
	return false
}

func (w *Watcher) addRecursive(ctx context.Context, fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path) {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", path).Debug("adding directory to watcher")
		return fsw.Add(path)
	})
}

// debouncer gathers changed paths until no change has arrived for delay
type debouncer struct {
	delay   time.Duration
	pending map[string]bool
	timer   *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, pending: map[string]bool{}}
}

func (d *debouncer) add(path string) {
	d.pending[path] = true
	if d.timer == nil {
		d.timer = time.NewTimer(d.delay)
		return
	}
	d.timer.Reset(d.delay)
}

// C fires once the batch has settled; nil while nothing is pending
func (d *debouncer) C() <-chan time.Time {
	if d.timer == nil {
		return nil
	}
	return d.timer.C
}

func (d *debouncer) flush() []string {
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	d.pending = map[string]bool{}
	d.stop()
	return paths
}

func (d *debouncer) stop() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
