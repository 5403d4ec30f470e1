package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jingkaihe/plugdoc/pkg/config"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a plugdoc configuration file with the defaults",
	Long: `Write .plugdoc/config.yaml in the current directory, or in your home directory with
--global, holding the default settings and the roots given with --root.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		override, _ := cmd.Flags().GetBool("override")
		global, _ := cmd.Flags().GetBool("global")

		configDir := config.DirName
		if global {
			home, err := os.UserHomeDir()
			if err != nil {
				fail(ctx, err, "failed to find home directory")
			}
			configDir = filepath.Join(home, config.DirName)
		}
		configFile := filepath.Join(configDir, "config.yaml")

		if !override {
			if _, err := os.Stat(configFile); err == nil {
				presenter.Warning(fmt.Sprintf("Configuration file already exists at %s", configFile))
				presenter.Info("To overwrite, use the --override flag or remove the file and run 'plugdoc init' again")
				return
			}
		}

		cfg := config.Default()
		if roots := viper.GetStringSlice("roots"); len(roots) > 0 {
			cfg.Roots = roots
		}
		content, err := renderConfig(cfg)
		if err != nil {
			fail(ctx, err, "failed to render configuration")
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			fail(ctx, err, "failed to create config directory")
		}
		if err := os.WriteFile(configFile, content, 0o644); err != nil {
			logger.G(ctx).WithError(err).WithField("config_file", configFile).Error("config file write failed")
			fail(ctx, err, "failed to write config file")
		}

		presenter.Success(fmt.Sprintf("Configuration saved to %s", configFile))
		presenter.Section("Getting Started")
		presenter.Info("  plugdoc list                      # List commands, agents and skills")
		presenter.Info("  plugdoc lint                      # Check the bundle")
		presenter.Info("  plugdoc plan <command> <args...>  # Plan a slash command")
		presenter.Info("  plugdoc mcp                       # Serve the bundle over MCP")
	},
}

func init() {
	initCmd.Flags().Bool("override", false, "Overwrite existing configuration file if it exists")
	initCmd.Flags().Bool("global", false, "Write the configuration under your home directory")
}

// renderConfig marshals cfg as the YAML layout config.Init reads back
func renderConfig(cfg config.Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# plugdoc configuration; every key can be overridden with PLUGDOC_<KEY>\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to encode configuration")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to encode configuration")
	}
	return buf.Bytes(), nil
}
