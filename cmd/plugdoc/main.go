package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/telemetry"
	"github.com/jingkaihe/plugdoc/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// tracingShutdown flushes spans once the command has run
var tracingShutdown telemetry.Shutdown = func(context.Context) error { return nil }

var rootCmd = &cobra.Command{
	Use:   "plugdoc",
	Short: "Index, plan and lint AI assistant plugin bundles",
	Long: `plugdoc loads a plugin bundle of slash commands, subagents and skills written as
Markdown with YAML frontmatter. It resolves which skills and agents apply to a request,
plans the dispatch of a command's numbered steps and lints the bundle for broken
references, misnumbered steps and stray Handlebars syntax.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.Init(configFile); err != nil {
			return err
		}
		if err := logger.Setup(viper.GetString("log_level"), viper.GetString("log_format"), os.Stderr); err != nil {
			return err
		}

		shutdown, err := initTracing(cmd.Context())
		if err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
			return nil
		}
		tracingShutdown = shutdown
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if err := tracingShutdown(cmd.Context()); err != nil {
			logger.G(cmd.Context()).WithError(err).Warn("failed to flush traces")
		}
	},
}

func init() {
	defaults := config.Default()
	rootCmd.PersistentFlags().StringSlice("root", nil, "Plugin bundle root to load (repeatable, earlier roots win)")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", defaults.LogFormat, "Log format (text or json)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./.plugdoc/config.yaml or ~/.plugdoc/config.yaml)")

	viper.BindPFlag("roots", rootCmd.PersistentFlags().Lookup("root"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(
		withTracing(listCmd),
		withTracing(showCmd),
		withTracing(matchCmd),
		withTracing(planCmd),
		plansCmd,
		withTracing(lintCmd),
		watchCmd,
		mcpCmd,
		schemaCmd,
		initCmd,
		versionCmd,
	)
}

func main() {
	ctx := context.Background()
	if err := fang.Execute(ctx, rootCmd, fang.WithVersion(version.Get().Version)); err != nil {
		os.Exit(1)
	}
}
