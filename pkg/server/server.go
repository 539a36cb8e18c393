// Package server exposes graph maintenance over a gin HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/go-zepsync/pkg/config"
	"github.com/soundprediction/go-zepsync/pkg/maintenance"
	"github.com/soundprediction/go-zepsync/pkg/server/handlers"
)

// Server is the HTTP front end of the maintenance operator.
type Server struct {
	config   config.ServerConfig
	operator *maintenance.Operator
	store    handlers.Pinger
	logger   *slog.Logger

	router     *gin.Engine
	httpServer *http.Server
}

// New creates a server. Call Setup before Start or Handler.
func New(cfg config.ServerConfig, operator *maintenance.Operator, store handlers.Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:   cfg,
		operator: operator,
		store:    store,
		logger:   logger,
	}
}

// Setup builds the router and registers the routes.
func (s *Server) Setup() {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	health := handlers.NewHealthHandler(s.store)
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)

	maint := handlers.NewMaintenanceHandler(s.operator, s.logger)
	graphs := router.Group("/graphs/:graph_id")
	{
		graphs.GET("/isolated-nodes", maint.IsolatedNodes)
		graphs.GET("/dangling-edges", maint.DanglingEdges)
		graphs.GET("/stats", maint.Stats)

		graphs.DELETE("/nodes/:uuid", maint.DeleteNode)
		graphs.DELETE("/edges/:uuid", maint.DeleteEdge)

		graphs.POST("/isolated-nodes/delete", maint.DeleteIsolatedNodes)
		graphs.POST("/dangling-edges/delete", maint.DeleteDanglingEdges)
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("server not set up")
	}
	s.logger.Info("Starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
