package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/jingkaihe/plugdoc/pkg/watch"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-lint the bundle whenever a document changes",
	Long: `Watch every bundle root and reload and lint the bundle whenever a Markdown document
or JSON manifest changes. Runs until interrupted with Ctrl+C.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		ctx = logger.WithComponent(ctx, "watch")

		cfg := mustLoadConfig(ctx)
		watchConfig := getWatchConfig(cmd, cfg)
		runWatchCommand(ctx, watchConfig)
	},
}

func init() {
	watchCmd.Flags().Int("debounce", 0, "Debounce window in milliseconds (default from watch.debounce_ms)")
	watchCmd.Flags().StringSlice("ignore-dirs", []string{".git", "node_modules"}, "Directories to ignore")
}

func getWatchConfig(cmd *cobra.Command, cfg config.Config) watch.Config {
	watchConfig := watch.NewConfig()
	watchConfig.Roots = cfg.Roots
	watchConfig.Include = cfg.Include
	watchConfig.Exclude = cfg.Exclude
	watchConfig.Lint = lintRules(cfg)
	watchConfig.Debounce = time.Duration(cfg.Watch.DebounceMS) * time.Millisecond

	if cmd.Flags().Changed("debounce") {
		if debounce, err := cmd.Flags().GetInt("debounce"); err == nil {
			watchConfig.Debounce = time.Duration(debounce) * time.Millisecond
		}
	}
	if ignoreDirs, err := cmd.Flags().GetStringSlice("ignore-dirs"); err == nil {
		watchConfig.IgnoreDirs = ignoreDirs
	}
	return watchConfig
}

func runWatchCommand(ctx context.Context, watchConfig watch.Config) {
	w, err := watch.New(watchConfig)
	if err != nil {
		fail(ctx, err, "invalid watch configuration")
	}

	presenter.Info("Watching " + fmt.Sprint(watchConfig.Roots) + ", press Ctrl+C to stop")
	err = w.Run(ctx, func(ev watch.Event) {
		presenter.Separator()
		for _, p := range ev.Paths {
			presenter.Info(ev.Time.Format("15:04:05") + " changed " + relPath(p))
		}
		if ev.Store == nil {
			presenter.Error(ev.LoadErr, "failed to load plugin bundle")
			return
		}
		printReport(ev.Report)
	})
	if err != nil {
		fail(ctx, err, "watch failed")
	}
	presenter.Info("Stopped watching")
}

func relPath(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(wd, path); err == nil {
		return rel
	}
	return path
}
