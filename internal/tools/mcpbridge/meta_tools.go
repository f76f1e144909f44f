package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/taskmetrics"
	"github.com/taskd/taskd/internal/tools"
)

// ListMcpServersHandler implements list_mcp_servers (§4.7).
type ListMcpServersHandler struct {
	Manager *mcpmanager.Manager
}

func (ListMcpServersHandler) Name() string { return "list_mcp_servers" }

func (ListMcpServersHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "list_mcp_servers",
		Description: "List configured MCP servers and, for connected servers, their tools and resources.",
		Category:    tools.CategoryMCP,
	}
}

func (h ListMcpServersHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h ListMcpServersHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	var servers []map[string]any
	for _, name := range h.Manager.ListConfigured() {
		report := h.Manager.Status(name)
		entry := map[string]any{
			"name":           name,
			"description":    report.Config.Description,
			"status":         string(report.Status),
			"enabled":        report.Config.Enabled,
			"transport_type": string(report.Config.TransportType),
		}
		if report.Status == mcpmanager.StatusRunning {
			if mcpTools, err := h.Manager.ListTools(ctx, name); err == nil {
				var toolList []map[string]any
				for _, t := range mcpTools {
					toolList = append(toolList, map[string]any{"name": t.Name, "description": t.Description})
				}
				entry["tools"] = toolList
			}
			if resources, err := h.Manager.ListResources(ctx, name); err == nil {
				var resList []map[string]any
				for _, r := range resources {
					resList = append(resList, map[string]any{"uri": r.URI, "name": r.Name, "description": r.Description})
				}
				entry["resources"] = resList
			}
		}
		servers = append(servers, entry)
	}
	return map[string]any{"servers": servers}, nil
}

// UseMcpToolHandler implements use_mcp_tool (§4.7). Metrics is optional;
// a nil value skips taskd_mcp_request_seconds recording.
type UseMcpToolHandler struct {
	Manager *mcpmanager.Manager
	Metrics *taskmetrics.Metrics
}

func (UseMcpToolHandler) Name() string { return "use_mcp_tool" }

func (UseMcpToolHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "use_mcp_tool",
		Description: "Call a tool exposed by a configured MCP server, auto-starting it if needed.",
		Category:    tools.CategoryMCP,
		Parameters: []tools.ParamSpec{
			{Name: "server_name", Type: tools.TypeString, Required: true},
			{Name: "tool_name", Type: tools.TypeString, Required: true},
			{Name: "arguments", Type: tools.TypeString, Default: "{}"},
		},
	}
}

func (h UseMcpToolHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h UseMcpToolHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	serverName, _ := params["server_name"].(string)
	toolName, _ := params["tool_name"].(string)
	argumentsJSON, _ := params["arguments"].(string)

	var args map[string]any
	if argumentsJSON != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return nil, fmt.Errorf("use_mcp_tool: invalid arguments JSON: %w", err)
		}
	}

	start := time.Now()
	result := h.Manager.ExecuteTool(ctx, serverName, toolName, args)
	h.Metrics.RecordMCPRequest(ctx, serverName, "call_tool", time.Since(start).Seconds(), result.Err == nil)
	if result.Err != nil {
		return nil, fmt.Errorf("use_mcp_tool: %w", result.Err)
	}

	return map[string]any{
		"success": result.Success,
		"is_error": result.IsError,
		"content":  normalizeContent(result.Content),
	}, nil
}

// AccessMcpResourceHandler implements access_mcp_resource (§4.7). Metrics is
// optional; a nil value skips taskd_mcp_request_seconds recording.
type AccessMcpResourceHandler struct {
	Manager *mcpmanager.Manager
	Metrics *taskmetrics.Metrics
}

func (AccessMcpResourceHandler) Name() string { return "access_mcp_resource" }

func (AccessMcpResourceHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "access_mcp_resource",
		Description: "Read a resource exposed by a connected MCP server.",
		Category:    tools.CategoryMCP,
		Parameters: []tools.ParamSpec{
			{Name: "server_name", Type: tools.TypeString, Required: true},
			{Name: "uri", Type: tools.TypeString, Required: true},
		},
	}
}

func (h AccessMcpResourceHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h AccessMcpResourceHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	serverName, _ := params["server_name"].(string)
	uri, _ := params["uri"].(string)

	start := time.Now()
	content, err := h.Manager.ReadResource(ctx, serverName, uri)
	h.Metrics.RecordMCPRequest(ctx, serverName, "read_resource", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return nil, fmt.Errorf("access_mcp_resource: %w", err)
	}

	if len(content) == 1 && content[0].Type == "text" {
		return map[string]any{"content": content[0].Text}, nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("access_mcp_resource: %w", err)
	}
	return map[string]any{"content": string(raw)}, nil
}
