package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"go.opentelemetry.io/otel/trace"
)

// exit flushes the command span and pending traces before terminating,
// since os.Exit skips deferred calls.
func exit(ctx context.Context, code int) {
	trace.SpanFromContext(ctx).End()
	if err := tracingShutdown(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to flush traces")
	}
	os.Exit(code)
}

// fail reports err to the user and exits with status 1
func fail(ctx context.Context, err error, message string) {
	presenter.Error(err, message)
	exit(ctx, 1)
}

func mustLoadConfig(ctx context.Context) config.Config {
	cfg, err := config.Load()
	if err != nil {
		fail(ctx, err, "invalid configuration")
	}
	return cfg
}

func newDiscovery(cfg config.Config) (*docs.Discovery, error) {
	return docs.NewDiscovery(
		docs.WithRoots(cfg.Roots...),
		docs.WithInclude(cfg.Include...),
		docs.WithExclude(cfg.Exclude...),
	)
}

// loadStore loads the bundle. Documents that fail to parse are logged and
// left to lint; only a missing store is fatal.
func loadStore(ctx context.Context, cfg config.Config) *docs.Store {
	d, err := newDiscovery(cfg)
	if err != nil {
		fail(ctx, err, "invalid discovery settings")
	}
	store, err := d.Load(ctx)
	if store == nil {
		fail(ctx, err, "failed to load plugin bundle")
	}
	if err != nil {
		logger.G(ctx).WithError(err).Warn("some documents failed to load, run 'plugdoc lint' for details")
	}
	return store
}

func lintRules(cfg config.Config) lint.Config {
	return lint.Config{
		Models:   cfg.Lint.Models,
		Tools:    cfg.Lint.Tools,
		Disabled: cfg.Lint.Disabled,
	}
}

func printJSON(ctx context.Context, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(ctx, err, "failed to encode JSON output")
	}
	fmt.Println(string(b))
}
