package http_api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/core-coin/stakeplan/internal/models"
	"github.com/core-coin/stakeplan/pkg/logger"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 10 * time.Second
	// limiterIdle is how long an idle client keeps its rate limiter.
	limiterIdle = 10 * time.Minute
)

// Options configures the HTTP server.
type Options struct {
	Port           int
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	Development    bool
}

// HTTPServer is the HTTP server struct that will serve the API
type HTTPServer struct {
	// logger is the logger instance
	logger *logger.Logger

	// router is the HTTP router
	router *gin.Engine
	// server is the underlying HTTP server
	server *http.Server

	// engine is the ledger and subscription engine
	engine models.EngineI

	auth    *authenticator
	limiter *IPRateLimiter
	// cleanupCtx scopes the rate limiter cleanup loop; stopCleanup ends it
	cleanupCtx  context.Context
	stopCleanup context.CancelFunc
}

// NewHTTPServer creates a new HTTP server instance
func NewHTTPServer(engine models.EngineI, opts Options, logger *logger.Logger) *HTTPServer {
	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           5 * time.Minute,
	}))

	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	server := &HTTPServer{
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%v", opts.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine:      engine,
		logger:      logger,
		auth:        newAuthenticator([]byte(opts.JWTSecret)),
		limiter:     NewIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		cleanupCtx:  cleanupCtx,
		stopCleanup: stopCleanup,
	}

	// Define routes
	server.routes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server is stopped.
// Start after Stop returns immediately.
func (s *HTTPServer) Start() {
	s.limiter.StartCleanup(s.cleanupCtx, time.Minute, limiterIdle)

	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal("Failed to start the HTTP server", "error", err)
	}
}

// Stop gracefully shuts down the HTTP server. It is safe to call before Start.
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.stopCleanup()

	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server shut down successfully")
	return nil
}

func requestLogger(logger *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"duration", time.Since(start))
	}
}
