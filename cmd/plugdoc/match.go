package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// MatchConfig holds configuration for the match command
type MatchConfig struct {
	Kind      string
	Limit     int
	Threshold float64
	JSON      bool
}

// NewMatchConfig creates a new MatchConfig with default values
func NewMatchConfig() *MatchConfig {
	return &MatchConfig{
		Limit:     match.DefaultLimit,
		Threshold: match.DefaultThreshold,
	}
}

// Options converts the config into match options
func (c *MatchConfig) Options() (match.Options, error) {
	opts := match.Options{Limit: c.Limit, Threshold: c.Threshold}
	if c.Kind != "" {
		k, ok := docs.ParseKind(c.Kind)
		if !ok || k == docs.KindCommand {
			return opts, errors.Errorf("invalid kind '%s', must be agent or skill", c.Kind)
		}
		opts.Kinds = []docs.Kind{k}
	}
	if c.Limit < 0 {
		return opts, errors.Errorf("limit cannot be negative: %d", c.Limit)
	}
	// the engine reads a zero threshold as "use the default"
	if c.Threshold <= 0 || c.Threshold > 1 {
		return opts, errors.Errorf("threshold must be greater than 0 and at most 1, got %v", c.Threshold)
	}
	return opts, nil
}

var matchCmd = &cobra.Command{
	Use:   "match <text...>",
	Short: "Find the skills and agents that apply to a request",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		runMatchCommand(ctx, strings.Join(args, " "), getMatchConfigFromFlags(cmd))
	},
}

func init() {
	defaults := NewMatchConfig()
	matchCmd.Flags().StringP("kind", "k", defaults.Kind, "Only match agents or skills")
	matchCmd.Flags().IntP("limit", "n", defaults.Limit, "Maximum number of matches")
	matchCmd.Flags().Float64("threshold", defaults.Threshold, "Minimum score, greater than 0 and at most 1")
	matchCmd.Flags().Bool("json", defaults.JSON, "Output as JSON")
}

func getMatchConfigFromFlags(cmd *cobra.Command) *MatchConfig {
	config := NewMatchConfig()

	// Config file values apply unless the flag was given explicitly
	if viper.IsSet("match.limit") && !cmd.Flags().Changed("limit") {
		config.Limit = viper.GetInt("match.limit")
	} else if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if viper.IsSet("match.threshold") && !cmd.Flags().Changed("threshold") {
		config.Threshold = viper.GetFloat64("match.threshold")
	} else if threshold, err := cmd.Flags().GetFloat64("threshold"); err == nil {
		config.Threshold = threshold
	}
	if kind, err := cmd.Flags().GetString("kind"); err == nil {
		config.Kind = kind
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSON = jsonOutput
	}
	return config
}

func runMatchCommand(ctx context.Context, text string, config *MatchConfig) {
	opts, err := config.Options()
	if err != nil {
		fail(ctx, err, "invalid match options")
	}

	store := loadStore(ctx, mustLoadConfig(ctx))
	matches := match.NewEngine(store).Match(ctx, text, opts)

	if config.JSON {
		if matches == nil {
			matches = []match.Match{}
		}
		printJSON(ctx, matches)
		return
	}

	if len(matches) == 0 {
		presenter.Info("No skills or agents matched")
		return
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{
			fmt.Sprintf("%.2f", m.Score),
			string(m.Kind),
			m.Name,
			truncate(strings.Join(m.Reasons, "; "), 60),
		})
	}
	presenter.Table([]string{"SCORE", "KIND", "NAME", "WHY"}, rows)
}
