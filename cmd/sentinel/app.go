package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/sentinel/internal/artifact"
	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/config"
	"github.com/phrazzld/sentinel/internal/events"
	"github.com/phrazzld/sentinel/internal/generation"
	"github.com/phrazzld/sentinel/internal/platform/gemini"
	"github.com/phrazzld/sentinel/internal/platform/memory"
	"github.com/phrazzld/sentinel/internal/platform/postgres"
	"github.com/phrazzld/sentinel/internal/queue"
	"github.com/phrazzld/sentinel/internal/service"
	"github.com/phrazzld/sentinel/internal/store"
	"github.com/phrazzld/sentinel/internal/task"
	"github.com/redis/go-redis/v9"
)

// connectTimeout bounds the initial connection checks against external services.
const connectTimeout = 10 * time.Second

// role says which parts of the pipeline a process runs.
type role int

const (
	// roleServer serves the API and push channel, optionally with in-process workers.
	roleServer role = iota
	// roleWorker only consumes the queue.
	roleWorker
)

// application holds the shared dependencies of a sentinel process and
// releases them on cleanup.
type application struct {
	config *config.Config
	logger *slog.Logger

	db    *sql.DB
	redis *redis.Client

	jobs          store.JobStore
	queue         queue.Backend
	authenticator *auth.Service
	artifacts     *artifact.LocalStore
	generator     generation.Generator
	hub           *events.Hub
	emitter       events.EventEmitter
}

// newApplication connects to the configured backends and builds the shared
// components for r. On error everything opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, r role) (*application, error) {
	app := &application{config: cfg, logger: log}

	if err := app.init(ctx, r); err != nil {
		app.cleanup()
		return nil, err
	}
	return app, nil
}

func (app *application) init(ctx context.Context, r role) error {
	cfg := app.config

	var err error
	app.authenticator, err = auth.NewServiceFromConfig(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize authentication: %w", err)
	}

	if cfg.Queue.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		app.redis, err = queue.OpenRedisClient(pingCtx, cfg.Queue.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if err := app.openRegistry(ctx); err != nil {
		return err
	}
	if err := app.openQueue(r); err != nil {
		return err
	}

	app.artifacts, err = artifact.NewLocalStore(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact storage: %w", err)
	}

	app.generator, err = newGenerator(ctx, cfg.LLM, app.logger)
	if err != nil {
		return err
	}

	app.emitter = app.buildEmitter(r)
	return nil
}

func (app *application) openRegistry(ctx context.Context) error {
	switch app.config.Registry.Backend {
	case "postgres":
		db, err := sql.Open("pgx", app.config.Registry.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		app.db = db

		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("failed to ping database: %w", err)
		}
		app.jobs = postgres.NewPostgresJobStore(db)
	default:
		app.jobs = memory.NewJobStore()
	}
	app.logger.Info("job registry initialized", "backend", app.config.Registry.Backend)
	return nil
}

func (app *application) openQueue(r role) error {
	cfg := app.config.Queue

	switch cfg.Backend {
	case "redis":
		app.queue = queue.NewRedisBackend(app.redis, cfg.RedisKey, app.logger)
	case "nsq":
		q, err := queue.NewNSQBackend(queue.NSQConfig{
			NSQDAddress:    cfg.NSQDAddress,
			LookupdAddress: cfg.NSQLookupdAddress,
			Topic:          cfg.NSQTopic,
			Channel:        cfg.NSQChannel,
			MaxInFlight:    app.config.Worker.Count,
			PublishOnly:    r == roleServer && app.config.Worker.Count == 0,
		}, app.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize queue: %w", err)
		}
		app.queue = q
	default:
		app.queue = queue.NewMemoryBackend(cfg.Size, app.logger)
	}
	app.logger.Info("job queue initialized", "backend", cfg.Backend)
	return nil
}

// buildEmitter decides where lifecycle events go. With a Redis connection
// every process publishes to the events channel and the server relays the
// channel into its hub, so events from standalone workers still reach
// subscribers. Without one, a server emits straight into its own hub.
func (app *application) buildEmitter(r role) events.EventEmitter {
	fanout := events.NewFanoutEmitter(app.logger)

	if r == roleWorker {
		fanout.Register(events.NewLogEmitter(app.logger))
	}
	if app.redis != nil {
		fanout.Register(events.NewRedisPublisher(app.redis, app.config.Queue.EventsChannel))
	}
	if r == roleServer {
		app.hub = events.NewHub(events.HubConfig{
			WriteTimeout:  time.Duration(app.config.Hub.WriteTimeoutSeconds) * time.Second,
			CommandBuffer: app.config.Hub.CommandBuffer,
			OutboxSize:    app.config.Hub.OutboxSize,
		}, app.logger)
		if app.redis == nil {
			fanout.Register(app.hub)
		}
	}
	return fanout
}

// newServices builds the submission and status services.
func (app *application) newServices() (service.Dispatcher, service.StatusService, error) {
	dispatcher, err := service.NewDispatcher(
		app.authenticator,
		app.jobs,
		app.queue,
		app.emitter,
		service.DispatcherConfig{DefaultTemplate: app.config.LLM.DefaultTemplate},
		app.logger,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize dispatcher: %w", err)
	}

	status, err := service.NewStatusService(app.jobs, app.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize status service: %w", err)
	}
	return dispatcher, status, nil
}

// newWorkerPool builds a pool of count workers over the application queue.
func (app *application) newWorkerPool(count int) (*task.WorkerPool, error) {
	timeout := time.Duration(app.config.Worker.JobTimeoutSeconds) * time.Second
	processor, err := task.NewJobProcessor(
		app.jobs,
		app.generator,
		app.artifacts,
		app.emitter,
		timeout,
		app.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job processor: %w", err)
	}

	return task.NewWorkerPool(app.queue, processor, task.WorkerPoolConfig{WorkerCount: count}, app.logger), nil
}

// cleanup releases connections in reverse order of acquisition.
func (app *application) cleanup() {
	if app.queue != nil {
		if err := app.queue.Close(); err != nil {
			app.logger.Error("failed to close queue", "error", err)
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			app.logger.Error("failed to close redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}
}

// newGenerator returns the Gemini generator backed by the built-in templates,
// or the templates alone when no API key is configured.
func newGenerator(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (generation.Generator, error) {
	templates, err := generation.NewTemplateGenerator()
	if err != nil {
		return nil, fmt.Errorf("failed to load project templates: %w", err)
	}

	if cfg.GeminiAPIKey == "" {
		log.Warn("no Gemini API key configured, generating from templates only")
		return templates, nil
	}

	llm, err := gemini.NewGenerator(ctx, log, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	log.Info("LLM generator initialized", "model", cfg.ModelName)
	return generation.NewFallbackGenerator(llm, templates), nil
}
