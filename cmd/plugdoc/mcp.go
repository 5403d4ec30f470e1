package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/mcpserver"
	"github.com/jingkaihe/plugdoc/pkg/version"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the bundle to an assistant as MCP tools over stdio",
	Long: `Start a Model Context Protocol server on stdin and stdout exposing the read-only
tools list_documents, show_document, match, plan and lint. The bundle is reloaded on
every call, so edits are picked up without restarting. Logs go to stderr.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		ctx = logger.WithComponent(ctx, "mcp")
		runMCPCommand(ctx)
	},
}

func runMCPCommand(ctx context.Context) {
	cfg := mustLoadConfig(ctx)
	d, err := newDiscovery(cfg)
	if err != nil {
		fail(ctx, err, "invalid discovery settings")
	}

	s, err := mcpserver.New(func(ctx context.Context) (*docs.Store, error) {
		return d.Load(ctx)
	}, mcpserver.Options{
		Version: version.Get().Version,
		Match:   match.Options{Limit: cfg.Match.Limit, Threshold: cfg.Match.Threshold},
		Lint:    lintRules(cfg),
		Plan:    plannerOptions(cfg),
	})
	if err != nil {
		fail(ctx, err, "failed to create MCP server")
	}

	if err := s.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		fail(ctx, err, "MCP server failed")
	}
}
