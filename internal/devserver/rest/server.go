// Package rest is the reference backend: the REST collaborator's routes
// served with gin over the SQLite store, plus the channel hub mounted at
// /ws/projects/:projectId.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steveyegge/projectsync/internal/devserver/db"
	"github.com/steveyegge/projectsync/internal/devserver/hub"
)

// Config holds server configuration.
type Config struct {
	// Addr to listen on (default: 127.0.0.1:8080)
	Addr string

	// Tokens maps bearer tokens to user ids. When empty every non-empty
	// token is accepted and used as the user id.
	Tokens map[string]string

	// Logger for request and hub logging (default: no-op)
	Logger *zap.Logger
}

// Server serves the REST routes and the channel hub.
type Server struct {
	db     *db.DB
	hub    *hub.Hub
	router *gin.Engine
	logger *zap.Logger
	addr   string

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// New creates a Server over store.
func New(store *db.DB, config *Config) (*Server, error) {
	if store == nil {
		return nil, errors.New("rest: store is required")
	}
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := config.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	authenticate := hub.StaticTokens(config.Tokens)
	if len(config.Tokens) == 0 {
		authenticate = anyToken
	}

	h, err := hub.New(&hub.Config{Authenticate: authenticate, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create hub: %w", err)
	}
	h.Start()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger.Named("http")))

	s := &Server{
		db:     store,
		hub:    h,
		router: router,
		logger: logger.Named("rest"),
		addr:   addr,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/ws/projects/:projectId", func(c *gin.Context) {
		h.ServeProject(c.Writer, c.Request, c.Param("projectId"))
	})

	api := router.Group("/api", s.authenticate(authenticate))
	{
		api.GET("/projects", s.handleListProjects)
		api.POST("/projects", s.handleCreateProject)
		api.GET("/projects/:projectId", s.handleGetProject)
		api.PUT("/projects/:projectId", s.handleUpdateProject)
		api.DELETE("/projects/:projectId", s.handleDeleteProject)
		api.GET("/projects/:projectId/dashboard", s.handleDashboard)

		api.GET("/projects/:projectId/tasks", s.handleListTasks)
		api.POST("/projects/:projectId/tasks", s.handleCreateTask)
		api.POST("/projects/:projectId/tasks/generate", s.handleGenerateTasks)
		api.POST("/projects/:projectId/tasks/commit", s.handleCommitTasks)

		api.GET("/tasks/:taskId", s.handleGetTask)
		api.PUT("/tasks/:taskId", s.handleUpdateTask)
		api.DELETE("/tasks/:taskId", s.handleDeleteTask)
		api.PUT("/tasks/:taskId/assign", s.handleAssignTask)
		api.POST("/tasks/:taskId/comments", s.handleAddComment)

		api.GET("/projects/:projectId/members", s.handleListMembers)
		api.POST("/projects/:projectId/members", s.handleAddMember)
		api.DELETE("/projects/:projectId/members/:memberId", s.handleRemoveMember)
		api.PUT("/projects/:projectId/members/:memberId/role", s.handleUpdateRole)
	}

	return s, nil
}

// Handler returns the server's routes, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the channel hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// Start listens on the configured address and serves in the background.
// The hub runs from New, so Handler works without Start.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", zap.Error(err))
		}
	}()

	s.logger.Info("serving", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop closes channel connections and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.listener = nil
	s.mu.Unlock()

	s.hub.Stop()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func anyToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", hub.ErrUnauthorized)
	}
	return token, nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
