package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskd/taskd/internal/mcpclient"
	"github.com/taskd/taskd/internal/mcpmanager"
)

// mcpServerView is one entry of GET /api/mcp/servers, combining a server's
// persisted config with its live status and (when running) tool/resource
// catalog.
type mcpServerView struct {
	Name      string                  `json:"name"`
	Status    mcpmanager.StatusReport `json:"status"`
	Tools     []mcpclient.Tool        `json:"tools,omitempty"`
	Resources []mcpclient.Resource    `json:"resources,omitempty"`
}

func (s *Server) handleListMCPServers(c echo.Context) error {
	ctx := c.Request().Context()
	names := s.mcpManager.ListConfigured()

	views := make([]mcpServerView, 0, len(names))
	for _, name := range names {
		status := s.mcpManager.Status(name)
		view := mcpServerView{Name: name, Status: status}
		if status.Status == mcpmanager.StatusRunning {
			if tools, err := s.mcpManager.ListTools(ctx, name); err == nil {
				view.Tools = tools
			}
			if resources, err := s.mcpManager.ListResources(ctx, name); err == nil {
				view.Resources = resources
			}
		}
		views = append(views, view)
	}
	return c.JSON(http.StatusOK, views)
}

// addMCPServerRequest is the body of POST /api/mcp/servers.
type addMCPServerRequest struct {
	Name   string                  `json:"name"`
	Config mcpmanager.ServerConfig `json:"config"`
}

func (s *Server) handleAddMCPServer(c echo.Context) error {
	var req addMCPServerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	if err := s.mcpManager.AddOrUpdate(req.Name, req.Config); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to persist server config")
	}

	if req.Config.Enabled {
		s.mcpManager.Start(c.Request().Context(), req.Name)
	}

	return c.JSON(http.StatusOK, s.mcpManager.Status(req.Name))
}

func (s *Server) handleMCPServerStart(c echo.Context) error {
	name := c.Param("name")
	if ok := s.mcpManager.Start(c.Request().Context(), name); !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to start server")
	}
	return c.JSON(http.StatusOK, s.mcpManager.Status(name))
}

func (s *Server) handleMCPServerStop(c echo.Context) error {
	name := c.Param("name")
	if err := s.mcpManager.Stop(c.Request().Context(), name); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to stop server")
	}
	return c.JSON(http.StatusOK, s.mcpManager.Status(name))
}

func (s *Server) handleMCPServerRestart(c echo.Context) error {
	name := c.Param("name")
	if ok := s.mcpManager.Restart(c.Request().Context(), name); !ok {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to restart server")
	}
	return c.JSON(http.StatusOK, s.mcpManager.Status(name))
}

// testMCPServerResponse is the body of POST /api/mcp/servers/test's response.
type testMCPServerResponse struct {
	Status    *mcpmanager.StatusReport `json:"status,omitempty"`
	Tools     []mcpclient.Tool         `json:"tools,omitempty"`
	Resources []mcpclient.Resource     `json:"resources,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

func (s *Server) handleMCPServerTest(c echo.Context) error {
	var cfg mcpmanager.ServerConfig
	if err := c.Bind(&cfg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	status, tools, resources, err := s.mcpManager.Test(c.Request().Context(), cfg)
	if err != nil {
		return c.JSON(http.StatusOK, testMCPServerResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, testMCPServerResponse{Status: status, Tools: tools, Resources: resources})
}
