// Package server exposes the engine over a REST API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kgrail/kgrail"
	"github.com/kgrail/kgrail/pkg/config"
	"github.com/kgrail/kgrail/pkg/server/handlers"
	"github.com/kgrail/kgrail/pkg/types"
)

// Server represents the HTTP server.
type Server struct {
	config *config.Config
	router *gin.Engine
	engine kgrail.Engine
	server *http.Server
}

// New creates a new server instance.
func New(cfg *config.Config, engine kgrail.Engine) *Server {
	return &Server{
		config: cfg,
		engine: engine,
	}
}

// Setup sets up the server routes and middleware.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// setupRoutes sets up all the routes.
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine)
	ingestHandler := handlers.NewIngestHandler(s.engine)
	retrieveHandler := handlers.NewRetrieveHandler(s.engine)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/search", retrieveHandler.Search)
		v1.POST("/resolve", retrieveHandler.Resolve)
		v1.POST("/validate", retrieveHandler.Validate)
		v1.POST("/ingest", ingestHandler.Ingest)
		v1.GET("/stats", retrieveHandler.Stats)
	}
}

// Start starts the server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the configured handler, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// corsMiddleware adds CORS headers.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// contextMiddleware extracts request-scoped identifiers from headers.
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyRequestID, requestID)
		}
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
