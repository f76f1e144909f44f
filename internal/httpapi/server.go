package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/conversation"
	httpmetrics "github.com/taskd/taskd/internal/http"
	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/secrets"
	"github.com/taskd/taskd/internal/taskengine"
	"github.com/taskd/taskd/internal/taskhistory"
)

// Server exposes taskd's task-execution and MCP-management API (§6).
type Server struct {
	echo   *echo.Echo
	logger *zap.Logger

	engine          *taskengine.Engine
	mcpManager      *mcpmanager.Manager
	scrubber        secrets.Scrubber
	defaultRepo     string
	serviceName     string
	port            int
	shutdownTimeout time.Duration
}

// Config bundles what NewServer needs from the daemon's wiring.
type Config struct {
	Engine          *taskengine.Engine
	MCPManager      *mcpmanager.Manager
	Scrubber        secrets.Scrubber
	DefaultRepoPath string
	ServiceName     string
	Port            int
	ShutdownTimeout time.Duration
}

// NewServer builds the echo router and registers every route.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(httpmetrics.NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:            e,
		logger:          logger,
		engine:          cfg.Engine,
		mcpManager:      cfg.MCPManager,
		scrubber:        cfg.Scrubber,
		defaultRepo:     cfg.DefaultRepoPath,
		serviceName:     cfg.ServiceName,
		port:            cfg.Port,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	s.registerRoutes()
	return s
}

// Start starts the HTTP server and blocks until ctx is cancelled, at which
// point it shuts down gracefully within the configured timeout. Mirrors
// pkg/server.Server.Start's errCh/select shape.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpapi: server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")
	api.POST("/tasks", s.handleStartTask)
	api.POST("/tasks/:id/abort", s.handleAbortTask)
	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)
	api.DELETE("/tasks/:id", s.handleDeleteTask)
	api.POST("/tasks/:id/favorite", s.handleFavoriteTask)

	api.GET("/mcp/servers", s.handleListMCPServers)
	api.POST("/mcp/servers", s.handleAddMCPServer)
	api.POST("/mcp/servers/:name/start", s.handleMCPServerStart)
	api.POST("/mcp/servers/:name/stop", s.handleMCPServerStop)
	api.POST("/mcp/servers/:name/restart", s.handleMCPServerRestart)
	api.POST("/mcp/servers/test", s.handleMCPServerTest)
}

// Echo exposes the underlying router, e.g. for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": s.serviceName})
}

// startTaskRequest is the body of POST /api/tasks.
type startTaskRequest struct {
	RepositoryPath string              `json:"repository_path"`
	Input          string              `json:"input"`
	TaskID         string              `json:"task_id,omitempty"`
	AIConfig       taskengine.AIConfig `json:"ai_config"`
}

func (s *Server) handleStartTask(c echo.Context) error {
	var req startTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}

	repoPath := req.RepositoryPath
	if repoPath == "" {
		repoPath = s.defaultRepo
	}

	ctx := c.Request().Context()
	_, events, abort := s.engine.Execute(ctx, req.TaskID, req.Input, repoPath, req.AIConfig)

	return s.streamSSE(c, events, abort)
}

// streamSSE relays the engine's event channel to the client as
// text/event-stream frames, cooperatively aborting the task if the client
// disconnects before a terminal event arrives.
func (s *Server) streamSSE(c echo.Context, events <-chan taskengine.Event, abort func()) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	clientGone := c.Request().Context().Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				s.logger.Warn("failed to marshal task event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return err
			}
			w.Flush()
		case <-clientGone:
			abort()
			return nil
		}
	}
}

func (s *Server) handleAbortTask(c echo.Context) error {
	// The engine's abort func is only reachable while the originating
	// request's streamSSE loop is live (disconnect triggers it too); a
	// second client hitting /abort has no handle on that closure, so this
	// endpoint is a documented no-op placeholder until a task registry
	// spans requests. It still returns 202 so callers relying on it for
	// idempotent retries don't see an error.
	return c.JSON(http.StatusAccepted, map[string]string{"task_id": c.Param("id"), "status": "abort requested"})
}

func (s *Server) handleListTasks(c echo.Context) error {
	repoPath := c.QueryParam("repository_path")
	if repoPath == "" {
		repoPath = s.defaultRepo
	}
	idx := taskhistory.NewManager(repoPath, s.logger)
	if _, err := idx.LoadHistory(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load task history")
	}

	opts := taskhistory.SearchOptions{
		Query:         c.QueryParam("query"),
		FavoritesOnly: c.QueryParam("favorites_only") == "true",
		SortBy:        taskhistory.SortBy(c.QueryParam("sort_by")),
	}
	if limit := c.QueryParam("limit"); limit != "" {
		fmt.Sscanf(limit, "%d", &opts.Limit)
	}

	return c.JSON(http.StatusOK, idx.SearchTasks(opts))
}

func (s *Server) handleGetTask(c echo.Context) error {
	taskID := c.Param("id")
	repoPath := c.QueryParam("repository_path")
	if repoPath == "" {
		repoPath = s.defaultRepo
	}

	mgr := conversation.NewManager(taskID, repoPath, s.scrubber, s.logger)
	found, err := mgr.LoadHistory()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load conversation history")
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"task_id":  taskID,
		"messages": mgr.Messages("", 0),
		"stats":    mgr.Stats(),
	})
}

func (s *Server) handleDeleteTask(c echo.Context) error {
	taskID := c.Param("id")
	repoPath := c.QueryParam("repository_path")
	if repoPath == "" {
		repoPath = s.defaultRepo
	}

	mgr := conversation.NewManager(taskID, repoPath, s.scrubber, s.logger)
	if _, err := mgr.DeleteHistoryFiles(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete task files")
	}

	idx := taskhistory.NewManager(repoPath, s.logger)
	if _, err := idx.LoadHistory(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load task history")
	}
	deleted := idx.DeleteTask(taskID)
	if err := idx.SaveHistory(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save task history")
	}

	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleFavoriteTask(c echo.Context) error {
	taskID := c.Param("id")
	repoPath := c.QueryParam("repository_path")
	if repoPath == "" {
		repoPath = s.defaultRepo
	}

	idx := taskhistory.NewManager(repoPath, s.logger)
	if _, err := idx.LoadHistory(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load task history")
	}
	isFavorited := idx.ToggleFavorite(taskID)
	if err := idx.SaveHistory(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save task history")
	}

	return c.JSON(http.StatusOK, map[string]any{"task_id": taskID, "is_favorited": isFavorited})
}
