// Package config loads plugdoc settings from the config file, PLUGDOC_*
// environment variables and bound CLI flags through the global viper instance.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "PLUGDOC"
	// DirName is the directory holding config.yaml, both repo-local and under $HOME
	DirName = ".plugdoc"
)

// Config is the fully resolved plugdoc configuration
type Config struct {
	Roots     []string      `mapstructure:"roots" yaml:"roots"`
	Include   []string      `mapstructure:"include" yaml:"include,omitempty"`
	Exclude   []string      `mapstructure:"exclude" yaml:"exclude,omitempty"`
	LogLevel  string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string        `mapstructure:"log_format" yaml:"log_format"`
	DBPath    string        `mapstructure:"db_path" yaml:"db_path,omitempty"`
	Match     MatchConfig   `mapstructure:"match" yaml:"match"`
	Lint      LintConfig    `mapstructure:"lint" yaml:"lint"`
	Plans     PlansConfig   `mapstructure:"plans" yaml:"plans"`
	Tracing   TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Watch     WatchConfig   `mapstructure:"watch" yaml:"watch"`
}

// MatchConfig tunes skill and agent matching
type MatchConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	Limit     int     `mapstructure:"limit" yaml:"limit"`
}

// LintConfig tunes the document linter
type LintConfig struct {
	Models   []string `mapstructure:"models" yaml:"models"`
	Tools    []string `mapstructure:"tools" yaml:"tools,omitempty"`
	Disabled []string `mapstructure:"disabled" yaml:"disabled,omitempty"`
}

// PlansConfig controls where plan artifacts are written
type PlansConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Sampler string  `mapstructure:"sampler" yaml:"sampler"`
	Ratio   float64 `mapstructure:"ratio" yaml:"ratio"`
}

// WatchConfig controls the file watcher
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Roots:     []string{"."},
		LogLevel:  "info",
		LogFormat: "text",
		Match: MatchConfig{
			Threshold: 0.15,
			Limit:     5,
		},
		Lint: LintConfig{
			Models: []string{"opus", "sonnet", "haiku", "inherit"},
		},
		Plans: PlansConfig{
			Dir: filepath.Join(".outputai", "plans"),
		},
		Tracing: TracingConfig{
			Sampler: "always",
			Ratio:   1,
		},
		Watch: WatchConfig{
			DebounceMS: 300,
		},
	}
}

// SetDefaults registers Default() values on v so that env overrides resolve
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("roots", d.Roots)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("match.threshold", d.Match.Threshold)
	v.SetDefault("match.limit", d.Match.Limit)
	v.SetDefault("lint.models", d.Lint.Models)
	v.SetDefault("plans.dir", d.Plans.Dir)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sampler", d.Tracing.Sampler)
	v.SetDefault("tracing.ratio", d.Tracing.Ratio)
	v.SetDefault("watch.debounce_ms", d.Watch.DebounceMS)
}

// Init wires env variables, defaults and config file search paths into the
// global viper instance. A missing config file is not an error.
func Init(configFile string) error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	SetDefaults(viper.GetViper())

	if configFile != "" {
		viper.SetConfigFile(configFile)
		return errors.Wrapf(viper.ReadInConfig(), "failed to read config file '%s'", configFile)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(DirName)
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, DirName))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load unmarshals the global viper state into a Config
func Load() (Config, error) {
	return FromViper(viper.GetViper())
}

// FromViper unmarshals v into a Config, filling zero values from Default()
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	d := Default()
	if len(cfg.Roots) == 0 {
		cfg.Roots = d.Roots
	}
	if cfg.Match.Limit <= 0 {
		cfg.Match.Limit = d.Match.Limit
	}
	if cfg.Match.Threshold <= 0 || cfg.Match.Threshold > 1 {
		return cfg, errors.Errorf("match.threshold must be greater than 0 and at most 1, got %v", cfg.Match.Threshold)
	}
	if cfg.Plans.Dir == "" {
		cfg.Plans.Dir = d.Plans.Dir
	}
	if cfg.Watch.DebounceMS < 0 {
		return cfg, errors.Errorf("watch.debounce_ms must not be negative, got %d", cfg.Watch.DebounceMS)
	}

	return cfg, nil
}

// DefaultDBPath returns the plan history database location, honouring
// PLUGDOC_BASE_PATH.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("PLUGDOC_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "plugdoc.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, DirName, "plugdoc.db"), nil
}

// ResolveDBPath returns cfg.DBPath or the default location
func (c Config) ResolveDBPath() (string, error) {
	if c.DBPath != "" {
		return c.DBPath, nil
	}
	return DefaultDBPath()
}
