package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundprediction/naturegraph"
	"github.com/soundprediction/naturegraph/pkg/config"
	"github.com/soundprediction/naturegraph/pkg/glossary"
	"github.com/soundprediction/naturegraph/pkg/server/handlers"
	"github.com/soundprediction/naturegraph/pkg/types"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Graph is what the server needs from the client.
type Graph interface {
	naturegraph.Ingester
	naturegraph.GraphQuerier
}

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	router   *gin.Engine
	graph    Graph
	glossary *glossary.Glossary
	logger   *slog.Logger
	server   *http.Server
}

// New creates a new server instance. graph may be nil; the API routes are
// then not registered and readiness reports the store as unavailable.
func New(cfg *config.Config, graph Graph, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   cfg,
		graph:    graph,
		glossary: glossary.Default(),
		logger:   logger.With("component", "server"),
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()
	s.router.Use(contextMiddleware())
	s.router.Use(requestLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the configured router. Setup must have been called.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	// A nil Graph must not be wrapped into a non-nil interface.
	var stats handlers.StatsReader
	if s.graph != nil {
		stats = s.graph
	}
	healthHandler := handlers.NewHealthHandler(stats)
	glossaryHandler := handlers.NewGlossaryHandler(s.glossary)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)

	v1 := s.router.Group("/api/v1")
	v1.POST("/glossary/terms", glossaryHandler.FindTerms)

	if s.graph == nil {
		return
	}
	ingestHandler := handlers.NewIngestHandler(s.graph)
	retrieveHandler := handlers.NewRetrieveHandler(s.graph)
	{
		v1.POST("/ingest", ingestHandler.Ingest)
		v1.POST("/search", retrieveHandler.Search)
		v1.POST("/answer", retrieveHandler.Answer)
		v1.GET("/stats", retrieveHandler.Stats)
		v1.GET("/nodes/search", retrieveHandler.SearchNodes)
		v1.GET("/nodes/:id/neighbors", retrieveHandler.Neighbors)
	}
}

// Start starts the server
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+RequestIDHeader)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextMiddleware assigns a request id, taken from the request header when
// present, and marks the request source for downstream logging.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := c.Request.Context()
		ctx = context.WithValue(ctx, types.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.Any("request_id", c.Request.Context().Value(types.ContextKeyRequestID)),
		)
	}
}
