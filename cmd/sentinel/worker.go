package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/sentinel/internal/config"
	"github.com/spf13/cobra"
)

// errSharedStateRequired is returned when a standalone worker is configured
// with backends that only exist inside a single process.
var errSharedStateRequired = errors.New(
	"a standalone worker needs the postgres registry and a redis or nsq queue",
)

func newWorkerCmd(load loadFunc) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the job queue without serving the API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				cfg.Worker.Count = count
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, cfg, log)
		},
	}

	cmd.Flags().IntVar(&count, "count", 0, "number of workers (default worker.count)")
	return cmd
}

// runWorker processes jobs until ctx is cancelled, the queue closes or the
// queue backend fails.
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Registry.Backend == "memory" || cfg.Queue.Backend == "memory" {
		return errSharedStateRequired
	}

	app, err := newApplication(ctx, cfg, log, roleWorker)
	if err != nil {
		return err
	}
	defer app.cleanup()

	pool, err := app.newWorkerPool(cfg.Worker.Count)
	if err != nil {
		return err
	}

	log.Info("worker started", "workers", cfg.Worker.Count)
	err = pool.Run(ctx)
	log.Info("worker stopped")
	return err
}
