package app

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ManifestPath is a single .hcl file or a directory of .hcl files.
	ManifestPath string `koanf:"manifest"`
	// DataPath is a YAML file holding the external run payload. Optional;
	// pipelines made only of self-sufficient loaders run without it.
	DataPath string `koanf:"data"`
	// Pipeline selects one declared pipeline by name. Empty runs them all.
	Pipeline string `koanf:"pipeline"`

	// Outputs and Fit override the run block of the selected pipeline.
	Outputs []string `koanf:"outputs"`
	Fit     []string `koanf:"fit"`

	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`
	MetricsPort int    `koanf:"metrics_port"`
}

// envPrefix namespaces the environment overrides, e.g. FITGRID__LOG_LEVEL.
const envPrefix = "FITGRID__"

// LoadConfig merges an optional YAML config file with FITGRID__ environment
// variables and applies defaults. Flag values are merged on top by the CLI.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading config %q: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(envPrefix, "__", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate rejects configurations the app cannot start with.
func (cfg *Config) Validate() error {
	if cfg.ManifestPath == "" {
		return errors.New("manifest path is required")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	return nil
}
