package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"taskbridge/internal/auth"
	"taskbridge/internal/config"
	"taskbridge/internal/instrumentation"
	"taskbridge/internal/logging"
	"taskbridge/internal/relay"
	"taskbridge/internal/tasks"
)

const (
	// DefaultReadHeaderTimeout bounds header reads on the API listener.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// TaskService is the slice of the task gateway the HTTP surface consumes.
type TaskService interface {
	Create(ctx context.Context, in tasks.CreateInput) (*tasks.TaskRef, error)
	List(ctx context.Context, in tasks.ListInput) ([]tasks.TaskRef, error)
	Complete(ctx context.Context, in tasks.CompleteInput) (*tasks.TaskRef, error)
}

// AuthReporter answers the auth status probe.
type AuthReporter interface {
	Status(ctx context.Context) auth.StatusInfo
}

// RelayProcessor handles inbound task-change notifications.
type RelayProcessor interface {
	Process(ctx context.Context, in relay.Inbound, force bool) (relay.Result, error)
}

// Server is the bridge API: task operations for the assistant caller plus
// the inbound relay webhook.
type Server struct {
	tasks   TaskService
	auth    AuthReporter
	relay   RelayProcessor
	health  *HealthChecker
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	apiToken   string
	httpServer *http.Server
}

// Options configures a Server.
type Options struct {
	Addr    string
	Tasks   TaskService
	Auth    AuthReporter
	Relay   RelayProcessor
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// APIToken, when set, is required as a bearer token on /api routes.
	APIToken string
}

// New creates a Server. The listener is not started until Start.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		tasks:    opts.Tasks,
		auth:     opts.Auth,
		relay:    opts.Relay,
		logger:   logging.WithComponent(logger, "server"),
		metrics:  opts.Metrics,
		apiToken: opts.APIToken,
	}
	s.health = NewHealthChecker()

	addr := opts.Addr
	if addr == "" {
		addr = config.DefaultHTTPAddr
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
	}
	return s
}

// Router builds the chi route tree. Exposed for tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health.LivenessHandler())
	r.Get("/readyz", s.health.ReadinessHandler())

	r.Route("/api", func(r chi.Router) {
		if s.apiToken != "" {
			r.Use(bearerAuth(s.apiToken))
		}
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks/{id}/complete", s.handleCompleteTask)
		r.Get("/auth/status", s.handleAuthStatus)
		r.Post("/relay/task-changed", s.handleTaskChanged)
	})

	return r
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.health.SetReady(true)
	s.logger.Info("starting bridge API", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down bridge API")
	return s.httpServer.Shutdown(ctx)
}
