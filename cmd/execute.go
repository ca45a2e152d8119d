// Package cmd implements the scout command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/scoutchat/scout/internal/config"
	"github.com/scoutchat/scout/internal/log"
)

// Build metadata, injected via -ldflags at release time.
var (
	AppVersion = "dev"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

const usage = `scout - session-scoped LLM chat with tools

Usage:
  scout [command]

Commands:
  serve        Start the HTTP chat server (default)
  ask <text>   Ask a one-shot question on the command line
  version      Print version information
  help         Show this help

Environment:
  SCOUT_*            Configuration overrides (SCOUT_PROVIDER, SCOUT_ADDR, ...)
  GEMINI_API_KEY     Credential for the gemini provider
  OPENAI_API_KEY     Credential for the openai provider
  DEBUG              Enable debug logging
`

// Execute dispatches the CLI. It returns an error instead of exiting so
// main owns the process exit code.
func Execute() error {
	args := os.Args[1:]

	command := "serve"
	if len(args) > 0 {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "version", "--version", "-v":
		fmt.Printf("scout %s (commit %s, built %s)\n", AppVersion, GitCommit, BuildTime)
		return nil

	case "help", "--help", "-h":
		fmt.Print(usage)
		return nil

	case "serve":
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return runServe(cfg, logger, args)

	case "ask":
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		return runAsk(cfg, logger, args)

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// loadConfig loads and validates configuration, then builds the logger
// from it. Config errors are fatal before any component starts.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := log.ParseLevel(cfg.Log.Level)
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{
		Level: level,
		JSON:  cfg.Log.JSON,
		File:  cfg.Log.File,
	})
	slog.SetDefault(logger)

	return cfg, logger, nil
}
