package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/sentinel/internal/api"
	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/task"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errNoConsumer is returned when a process-local queue would have no workers.
var errNoConsumer = errors.New("the memory queue needs at least one in-process worker")

func newServeCmd(load loadFunc) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and push channel",
		Long: "Serve POST /generate, GET /status/{job_id}, GET /ws and GET /health.\n" +
			"Workers run in-process unless --workers=0, in which case jobs are left\n" +
			"to standalone `sentinel worker` processes.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(load)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("workers") {
				cfg.Worker.Count = workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, log)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of in-process workers (default worker.count)")
	return cmd
}

// runServer runs the hub, the optional event relay and worker pool, and the
// HTTP server until ctx is cancelled or one of them fails.
func runServer(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.Worker.Count < 0 {
		return fmt.Errorf("worker count cannot be negative: %d", cfg.Worker.Count)
	}
	if cfg.Worker.Count == 0 && cfg.Queue.Backend == "memory" {
		return errNoConsumer
	}

	app, err := newApplication(ctx, cfg, log, roleServer)
	if err != nil {
		return err
	}
	defer app.cleanup()

	dispatcher, status, err := app.newServices()
	if err != nil {
		return err
	}

	var pool *task.WorkerPool
	if cfg.Worker.Count > 0 {
		pool, err = app.newWorkerPool(cfg.Worker.Count)
		if err != nil {
			return err
		}
	}

	router := api.NewRouter(api.RouterConfig{
		Dispatcher:    dispatcher,
		Status:        status,
		Authenticator: app.authenticator,
		Hub:           app.hub,
		Logger:        log,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.hub.Run(gctx)
		return nil
	})

	if app.redis != nil {
		g.Go(func() error {
			return events.Relay(gctx, app.redis, cfg.Queue.EventsChannel, app.hub, log)
		})
	}

	if pool != nil {
		g.Go(func() error {
			return pool.Run(gctx)
		})
	}

	g.Go(func() error {
		return app.runHTTPServer(gctx, router)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
