package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/platform/logger"
	"github.com/spf13/cobra"
)

// loadFunc loads configuration. Tests replace it to avoid reading the environment.
type loadFunc func() (*config.Config, error)

func newRootCmd() *cobra.Command {
	return newRootCmdWith(config.Load)
}

func newRootCmdWith(load loadFunc) *cobra.Command {
	root := &cobra.Command{
		Use:          "sentinel",
		Short:        "Project generation job service",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(load),
		newWorkerCmd(load),
		newMigrateCmd(load),
		newTokenCmd(load),
		newHashKeyCmd(),
	)
	return root
}

// setup loads configuration and installs the application logger.
func setup(load loadFunc) (*config.Config, *slog.Logger, error) {
	cfg, err := load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"registry", cfg.Registry.Backend,
		"queue", cfg.Queue.Backend)
	return cfg, log, nil
}
