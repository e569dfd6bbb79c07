package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearth-home/hearth-core/internal/entry"
	"github.com/hearth-home/hearth-core/internal/history"
	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
	"github.com/hearth-home/hearth-core/internal/infrastructure/logging"
	"github.com/hearth-home/hearth-core/internal/infrastructure/mqtt"
	"github.com/hearth-home/hearth-core/internal/integration"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Manager  *entry.Manager
	Repo     entry.Repository
	Registry *integration.Registry
	History  history.Store // optional: history endpoint 404s without it
	MQTT     *mqtt.Client  // optional: inbound refresh commands need it
	Version  string

	// Hub is the WebSocket hub to serve. Optional: one is created on
	// Start() when absent. Passing it in lets the caller attach the hub
	// to the entry manager before the server exists.
	Hub *Hub
}

// Server is the HTTP API server for Hearth Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	manager  *entry.Manager
	repo     entry.Repository
	registry *integration.Registry
	history  history.Store
	mqtt     *mqtt.Client
	version  string
	server   *http.Server
	hub      *Hub
	tickets  *ticketStore
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("entry manager is required")
	}
	if deps.Repo == nil {
		return nil, fmt.Errorf("entry repository is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("integration registry is required")
	}
	// MQTT is optional: external refresh commands won't work without it
	// but the REST surface and WebSocket still function.

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		manager:  deps.Manager,
		repo:     deps.Repo,
		registry: deps.Registry,
		history:  deps.History,
		mqtt:     deps.MQTT,
		version:  deps.Version,
		hub:      deps.Hub,
		tickets:  newTicketStore(),
	}, nil
}

// Hub returns the server's WebSocket hub: the one passed in Deps, or the
// one created on Start(). The hub doubles as the entry event sink and
// entity change broadcaster.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to inbound MQTT refresh commands,
// and launches the HTTP listener in a background goroutine. The server can
// be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	// Periodic ticket cleanup to prevent memory leaks.
	go s.cleanTicketsLoop(srvCtx)

	if err := s.subscribeRefreshCommands(); err != nil {
		s.logger.Warn("failed to subscribe to refresh commands", "error", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// subscribeRefreshCommands wires inbound MQTT refresh requests to
// coordinators: a message on hearth/coordinator/{entryID}/refresh asks that
// entry's coordinator for a debounced refresh.
func (s *Server) subscribeRefreshCommands() error {
	if s.mqtt == nil {
		return nil
	}
	topics := mqtt.Topics{}
	return s.mqtt.Subscribe(topics.AllCoordinatorRefresh(), 0, func(topic string, _ []byte) error {
		entryID, ok := mqtt.EntryIDFromRefreshTopic(topic)
		if !ok {
			return nil
		}
		coord, err := s.manager.Coordinator(entryID)
		if err != nil {
			s.logger.Debug("refresh command for unloaded entry", "entry", entryID)
			return nil
		}
		coord.RequestRefresh()
		return nil
	})
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	if s.server == nil {
		return fmt.Errorf("API server not started")
	}

	scheme := "http"
	if s.cfg.TLS.Enabled {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/api/system/health", scheme, s.server.Addr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building health check request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}
