package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/sentinel/internal/api/middleware"
	"github.com/phrazzld/sentinel/internal/api/shared"
	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/phrazzld/sentinel/internal/service"
)

// RouterConfig holds the dependencies of the HTTP surface.
type RouterConfig struct {
	Dispatcher    service.Dispatcher
	Status        service.StatusService
	Authenticator auth.Authenticator
	Hub           Hub
	Logger        *slog.Logger
}

// NewRouter creates the application router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))
	r.Use(chimiddleware.Recoverer)

	jobs := NewJobHandler(cfg.Dispatcher, cfg.Status)
	authMiddleware := middleware.NewAuthMiddleware(cfg.Authenticator)

	// The dispatcher authenticates submissions itself.
	r.Post("/generate", jobs.Generate)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Get("/status/{job_id}", jobs.GetStatus)
	})

	r.Method(http.MethodGet, "/ws", NewPushHandler(cfg.Hub))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
	})

	return r
}
