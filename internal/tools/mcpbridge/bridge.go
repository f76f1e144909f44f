package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskd/taskd/internal/mcpclient"
	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/tools"
)

// NameSeparator joins a server name and tool name into one dynamic tool
// name (§4.8). It must not collide with characters MCP tool/server names
// use, so it is a shared constant rather than an ad hoc string literal.
const NameSeparator = "__mcp__"

// Compose builds the dynamic tool name for a given server and MCP tool.
func Compose(server, tool string) string {
	return server + NameSeparator + tool
}

// Parse splits a dynamic tool name back into (server, tool). ok is false if
// name does not contain the separator, meaning it is not an MCP-dynamic tool.
func Parse(name string) (server, tool string, ok bool) {
	idx := strings.Index(name, NameSeparator)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(NameSeparator):], true
}

type jsonSchemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type jsonSchema struct {
	Properties map[string]jsonSchemaProperty `json:"properties"`
	Required   []string                      `json:"required"`
}

func schemaToParamSpecs(raw json.RawMessage) []tools.ParamSpec {
	if len(raw) == 0 {
		return nil
	}
	var schema jsonSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	var specs []tools.ParamSpec
	for name, prop := range schema.Properties {
		specs = append(specs, tools.ParamSpec{
			Name:        name,
			Type:        jsonTypeToParamType(prop.Type),
			Description: prop.Description,
			Required:    required[name],
		})
	}
	return specs
}

func jsonTypeToParamType(jsonType string) tools.ParamType {
	switch jsonType {
	case "object":
		return tools.TypeObject
	case "number":
		return tools.TypeNumber
	case "integer":
		return tools.TypeInteger
	case "boolean":
		return tools.TypeBoolean
	case "array":
		return tools.TypeArray
	default:
		return tools.TypeString
	}
}

// dynamicHandler wraps one MCP tool from one server as a tools.Handler.
type dynamicHandler struct {
	manager *mcpmanager.Manager
	server  string
	tool    mcpclient.Tool
}

func (h *dynamicHandler) Name() string { return Compose(h.server, h.tool.Name) }

func (h *dynamicHandler) Spec() tools.Spec {
	description := h.tool.Description
	if !strings.Contains(description, h.server) {
		description = fmt.Sprintf("[MCP: %s] %s", h.server, description)
	}
	return tools.Spec{
		Name:        h.Name(),
		Description: description,
		Category:    tools.CategoryMCPDynamic,
		Parameters:  schemaToParamSpecs(h.tool.InputSchema),
	}
}

func (h *dynamicHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h *dynamicHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	result := h.manager.ExecuteTool(ctx, h.server, h.tool.Name, params)
	if result.Err != nil {
		return nil, fmt.Errorf("%s: %w", h.Name(), result.Err)
	}
	return map[string]any{
		"success":  result.Success,
		"is_error": result.IsError,
		"content":  normalizeContent(result.Content),
	}, nil
}

// Bridge reconciles the coordinator's mcp_dynamic category against the
// manager's currently active servers: every call to Reconcile clears all
// previously-registered dynamic handlers and re-derives one per tool per
// active server (§4.8). Intended to be passed as mcpmanager.SetReconciler's
// callback.
type Bridge struct {
	coordinator *tools.Coordinator
	manager     *mcpmanager.Manager
}

func NewBridge(coordinator *tools.Coordinator, manager *mcpmanager.Manager) *Bridge {
	return &Bridge{coordinator: coordinator, manager: manager}
}

func (b *Bridge) Reconcile() {
	b.coordinator.UnregisterCategory(tools.CategoryMCPDynamic)

	ctx := context.Background()
	for _, server := range b.manager.ActiveNames() {
		mcpTools, err := b.manager.ListTools(ctx, server)
		if err != nil {
			continue
		}
		for _, t := range mcpTools {
			b.coordinator.Register(&dynamicHandler{manager: b.manager, server: server, tool: t})
		}
	}
}
