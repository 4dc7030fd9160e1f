// Package server provides the HTTP server that wires all services together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sightlinehq/sightline/internal/bus"
	"github.com/sightlinehq/sightline/internal/config"
	"github.com/sightlinehq/sightline/internal/embed"
	"github.com/sightlinehq/sightline/internal/metrics"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
	"github.com/sightlinehq/sightline/internal/pkg/middleware"
	"github.com/sightlinehq/sightline/internal/qdrant"
	"github.com/sightlinehq/sightline/internal/search"
	"github.com/sightlinehq/sightline/internal/search/rerank"
)

// Server is the main HTTP server that wires all services together.
type Server struct {
	cfg        Config
	appCfg     config.Config
	log        *logger.Logger
	httpServer *http.Server

	// Services
	bus     bus.Bus
	qdrant  *qdrant.Client
	embed   embed.Provider
	search  *search.Service
	series  *metrics.TimeSeriesData
	storage *metrics.RedisStorage

	// Handlers
	searchHandler   *search.Handler
	documentHandler *DocumentHandler
	healthHandler   *HealthHandler

	mu      sync.RWMutex
	started bool
}

// Config configures the server.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a new server with all dependencies.
func New(cfg Config, appCfg config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    cfg,
		appCfg: appCfg,
		log:    log,
	}

	// Initialize event bus
	eventBus, err := bus.New(appCfg.Bus, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	s.bus = eventBus

	// Initialize Qdrant client
	qdrantCfg := qdrant.DefaultClientConfig()
	if appCfg.Qdrant.URL != "" {
		host, port, err := parseQdrantURL(appCfg.Qdrant.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
		}
		qdrantCfg.Host = host
		qdrantCfg.Port = port
	}
	if appCfg.Qdrant.APIKey != "" {
		qdrantCfg.APIKey = appCfg.Qdrant.APIKey
	}
	if appCfg.Qdrant.CollectionPrefix != "" {
		qdrantCfg.CollectionPrefix = appCfg.Qdrant.CollectionPrefix
	}
	if appCfg.Qdrant.TimeoutSeconds > 0 {
		qdrantCfg.Timeout = time.Duration(appCfg.Qdrant.TimeoutSeconds) * time.Second
	}

	qc, err := qdrant.NewClient(qdrantCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	s.qdrant = qc

	// Initialize embedding provider
	s.embed = embed.NewHTTPProvider(embed.HTTPConfig{
		BaseURL: appCfg.Embed.URL,
		Timeout: time.Duration(appCfg.Embed.TimeoutSeconds) * time.Second,
	})

	// Initialize metrics collection
	if appCfg.Metrics.Enabled {
		if appCfg.Metrics.RedisURL != "" {
			storage, err := metrics.NewRedisStorage(appCfg.Metrics.RedisURL)
			if err != nil {
				log.Warn("metrics persistence unavailable, keeping in-memory only", "error", err)
			} else {
				s.storage = storage
			}
		}
		s.series = metrics.NewTimeSeriesData(s.storage)
	}

	// Initialize reranker and search service
	reranker := rerank.New(s.qdrant, log, rerank.Config{
		Fanout: appCfg.Search.RerankFanout,
	})
	s.search = search.NewService(s.embed, s.qdrant, reranker, log, search.Config{
		DefaultNResults:  appCfg.Search.DefaultNResults,
		EnableReranking:  appCfg.Search.EnableReranking,
		RerankCandidates: appCfg.Search.RerankCandidates,
		StatsWindow:      appCfg.Search.StatsWindow,
	})

	// Initialize handlers
	s.searchHandler = search.NewHandler(s.search, s.series)
	s.searchHandler.OnCompleted = s.publishSearchCompleted
	s.documentHandler = NewDocumentHandler(s.qdrant, s.bus, s.series, log)
	s.healthHandler = NewHealthHandler(s.qdrant, cfg.Version)

	return s, nil
}

// parseQdrantURL extracts host and gRPC port from a Qdrant URL.
// Example: http://localhost:6333 -> localhost, 6334
func parseQdrantURL(rawURL string) (string, int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", 0, err
	}

	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}

	portStr := u.Port()
	httpPort := 6333
	if portStr != "" {
		httpPort, err = strconv.Atoi(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("invalid port: %s", portStr)
		}
	}

	// Qdrant serves gRPC on the HTTP port + 1
	return host, httpPort + 1, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Make sure both modality collections exist before serving.
	err := s.qdrant.EnsureCollections(ctx,
		uint64(s.appCfg.Embed.VisualDim), uint64(s.appCfg.Embed.TextDim))
	if err != nil {
		s.log.Warn("could not ensure collections, continuing in degraded mode", "error", err)
	}

	handler := s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("Starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	if s.qdrant != nil {
		s.qdrant.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.storage != nil {
		s.storage.Close()
	}

	s.started = false
	s.log.Info("Server stopped")

	return nil
}

// setupRoutes configures all HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/search", s.searchHandler.HandleSearch)
	mux.HandleFunc("/v1/stats", s.searchHandler.HandleStats)
	mux.HandleFunc("/v1/documents", s.documentHandler.HandleUpsert)
	mux.HandleFunc("/v1/collections", s.documentHandler.HandleCollections)
	mux.HandleFunc("/healthz", s.healthHandler.HandleLiveness)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReadiness)

	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(s.appCfg.Security.APIKey)(handler)
	if s.appCfg.Security.RateLimit > 0 {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(s.appCfg.Security.RateLimit),
			Burst:             s.appCfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		handler = rl.Middleware(handler)
	}
	handler = middleware.CORS(handler)

	return s.wrapWithLogging(handler)
}

// wrapWithLogging logs each request with its status and duration.
func (s *Server) wrapWithLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// publishSearchCompleted emits a search.completed event. Publish failures
// are logged, never surfaced to the caller.
func (s *Server) publishSearchCompleted(req search.Request, resp *search.Response) {
	mode := req.Mode
	if mode == "" {
		mode = search.ModeHybrid
	}

	event := bus.NewEvent(
		fmt.Sprintf("search-%d", time.Now().UnixNano()),
		bus.TopicSearchCompleted,
		"sightline-server",
		bus.SearchCompletedPayload{
			Query:         req.Query,
			Mode:          string(mode),
			Results:       len(resp.Results),
			RerankedCount: resp.RerankedCount,
			DroppedCount:  resp.DroppedCount,
			TotalTimeMs:   resp.TotalTimeMs,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.bus.Publish(ctx, bus.TopicSearchCompleted, event); err != nil {
		s.log.Warn("failed to publish search event", "error", err)
	}
}

// Health reports whether the server has been started.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
