// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/sse"
	"github.com/url-indexer/internal/storage"
	"github.com/url-indexer/internal/types"
)

// JobExecutor runs (or resumes) indexing jobs keyed by request ID.
type JobExecutor interface {
	Execute(ctx context.Context, app *types.App, urls []string, saveLog bool, requestID string, stream *sse.Stream) (string, error)
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	executor   JobExecutor
	appRepo    *storage.AppRepository
	statsRepo  *storage.BatchStatsRepository
	logRepo    *storage.LogRepository
	urlCache   *storage.URLCache
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    int // Requests per second per client
	FlushInterval   time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	executor JobExecutor,
	appRepo *storage.AppRepository,
	statsRepo *storage.BatchStatsRepository,
	logRepo *storage.LogRepository,
	urlCache *storage.URLCache,
) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		executor:  executor,
		appRepo:   appRepo,
		statsRepo: statsRepo,
		logRepo:   logRepo,
		urlCache:  urlCache,
		config:    config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RateLimitRPS, 10)

	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	// Write timeout must not apply to the streaming endpoint, which holds the
	// connection open for the whole run; it is disabled at the server level
	// and enforced per-handler via request timeouts instead.
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:     s.router,
		ReadTimeout: s.config.ReadTimeout,
		IdleTimeout: s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// App endpoints
	api.HandleFunc("/apps", s.handleCreateApp).Methods("POST")
	api.HandleFunc("/apps", s.handleListApps).Methods("GET")
	api.HandleFunc("/apps/{id}", s.handleGetApp).Methods("GET")
	api.HandleFunc("/apps/{id}", s.handleUpdateApp).Methods("PUT")
	api.HandleFunc("/apps/{id}", s.handleDeleteApp).Methods("DELETE")

	// Indexing endpoint (event stream)
	api.HandleFunc("/index", s.handleIndex).Methods("GET", "POST")

	// Run history endpoints
	api.HandleFunc("/logs", s.handleListLogs).Methods("GET")
	api.HandleFunc("/batches", s.handleListBatches).Methods("GET")
	api.HandleFunc("/batches/{id}", s.handleGetBatch).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "url-indexer",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.GetGlobalLogger().WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.GetGlobalLogger().Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
