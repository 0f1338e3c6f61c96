package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/fitgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("fitgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
fitgrid - A pipeline runner for fit/transform computation graphs.

Usage:
  fitgrid [options] [MANIFEST_PATH]

Arguments:
  MANIFEST_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	manifestFlag := flagSet.String("manifest", "", "Path to the manifest file or directory.")
	mFlag := flagSet.String("m", "", "Path to the manifest file or directory (shorthand).")
	configFlag := flagSet.String("config", "", "Path to a YAML config file. Optional.")
	dataFlag := flagSet.String("data", "", "Path to a YAML file with the external run payload.")
	pipelineFlag := flagSet.String("pipeline", "", "Run only the named pipeline. Empty runs all.")
	outputsFlag := flagSet.String("outputs", "", "Comma-separated node names to compute, overriding the run block.")
	fitFlag := flagSet.String("fit", "", "Comma-separated node names to fit, overriding the run block.")
	metricsPortFlag := flagSet.Int("metrics-port", 0, "Port for the HTTP metrics/health server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	cfg, err := app.LoadConfig(*configFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	// Flags win over file and environment values.
	if *manifestFlag != "" {
		cfg.ManifestPath = *manifestFlag
	} else if *mFlag != "" {
		cfg.ManifestPath = *mFlag
	} else if flagSet.NArg() > 0 {
		cfg.ManifestPath = flagSet.Arg(0)
	}
	if *dataFlag != "" {
		cfg.DataPath = *dataFlag
	}
	if *pipelineFlag != "" {
		cfg.Pipeline = *pipelineFlag
	}
	if names := splitNames(*outputsFlag); len(names) > 0 {
		cfg.Outputs = names
	}
	if names := splitNames(*fitFlag); len(names) > 0 {
		cfg.Fit = names
	}
	if *metricsPortFlag != 0 {
		cfg.MetricsPort = *metricsPortFlag
	}
	if *logFormatFlag != "" {
		cfg.LogFormat = strings.ToLower(*logFormatFlag)
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = strings.ToLower(*logLevelFlag)
	}

	if cfg.ManifestPath == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	return &cfg, false, nil
}

// splitNames turns "a,b , c" into ["a" "b" "c"], dropping empty entries.
func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
