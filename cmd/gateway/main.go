// Command gateway runs the policy gateway: an HTTP data plane that
// pushes every request through the policy pipeline before forwarding
// it upstream, plus an operations listener for health, metrics, and
// read-only state.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/policygw/internal/config"
	"github.com/vyrodovalexey/policygw/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to the configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	logFormat := flag.String("log-format", "", "override the configured log format (json or console)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("gateway exited with error", observability.Error(err))
		os.Exit(1)
	}
}
