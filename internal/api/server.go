package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/itemkeeper/internal/audit"
	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/config"
	"github.com/nerrad567/itemkeeper/internal/infrastructure/logging"
	"github.com/nerrad567/itemkeeper/internal/item"
	"github.com/nerrad567/itemkeeper/internal/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	Logger      *logging.Logger
	Tokens      *auth.TokenService
	Credentials *auth.CredentialValidator
	Users       auth.UserDirectory
	Items       item.Repository

	// Optional collaborators. Nil disables the feature.
	Audit          *audit.Recorder
	AuditLogs      audit.Repository
	Events         item.Publisher
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
	MetricsPath    string

	Registration bool // mounts POST /api/auth/register
	DevMode      bool // exposes error chains and panic stacks in error responses
	Version      string
}

// Server is the HTTP API server for itemkeeper.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg            config.APIConfig
	logger         *logging.Logger
	tokens         *auth.TokenService
	credentials    *auth.CredentialValidator
	users          auth.UserDirectory
	items          item.Repository
	audit          *audit.Recorder
	auditLogs      audit.Repository
	events         item.Publisher
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	metricsPath    string
	registration   bool
	devMode        bool
	version        string

	server *http.Server

	// hub and upgrader serve GET /api/events; nil when the stream is off.
	hub      *Hub
	upgrader *websocket.Upgrader

	// publishing tracks in-flight event publishes so Close can wait for them.
	publishing sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("credential validator is required")
	}
	if deps.Items == nil {
		return nil, fmt.Errorf("item repository is required")
	}
	if deps.Registration && deps.Users == nil {
		return nil, fmt.Errorf("user directory is required when registration is enabled")
	}

	path := deps.MetricsPath
	if path == "" {
		path = "/metrics"
	}

	srv := &Server{
		cfg:            deps.Config,
		logger:         deps.Logger,
		tokens:         deps.Tokens,
		credentials:    deps.Credentials,
		users:          deps.Users,
		items:          deps.Items,
		audit:          deps.Audit,
		auditLogs:      deps.AuditLogs,
		events:         deps.Events,
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		metricsPath:    path,
		registration:   deps.Registration,
		devMode:        deps.DevMode,
		version:        deps.Version,
	}

	if deps.Config.Stream.Enabled {
		srv.hub = NewHub(deps.Config.Stream, deps.Logger, deps.Metrics)
		srv.upgrader = srv.newUpgrader()
		publishers := item.Publishers{srv.hub}
		if deps.Events != nil {
			publishers = append(publishers, deps.Events)
		}
		srv.events = publishers
	}

	return srv, nil
}

// Handler returns the fully wired router. Start serves the same handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then for
// any event publishes those requests started, and finally disconnects
// event stream clients.
func (s *Server) Close() error {
	var err error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutting down API server: %w", shutdownErr)
		}
	}

	s.publishing.Wait()
	s.hub.Close()
	return err
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
