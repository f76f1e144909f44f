// Package tools defines the tool coordinator: a uniform registry and
// dispatch layer for built-in tools and dynamically discovered MCP tools
// (§3 Tool specification/call/result/context, §4.5 Tool Coordinator).
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ParamType is one of the JSON-Schema-ish primitive types a tool parameter
// may declare.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

// Category classifies a tool for prompt-catalog rendering and bulk
// registration/unregistration (dynamic MCP reconciliation unregisters by
// category).
type Category string

const (
	CategoryFile       Category = "file"
	CategoryGit        Category = "git"
	CategorySearch     Category = "search"
	CategoryAnalysis   Category = "analysis"
	CategoryCompletion Category = "completion"
	CategoryMCP        Category = "mcp"
	CategoryMCPDynamic Category = "mcp_dynamic"
)

// ParamSpec describes one named parameter. Specs carry an ordered slice
// (rather than a map) so catalog rendering preserves declaration order.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Default     any
}

// Spec is a tool's immutable specification, registered once.
type Spec struct {
	Name        string
	Description string
	Category    Category
	Parameters  []ParamSpec
}

// Call is one LLM-emitted invocation.
type Call struct {
	ID         string
	Name       string
	Parameters map[string]any
}

// Result is returned both as the engine's tool-execution outcome and as the
// feedback text fed back to the LLM.
type Result struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Context is the ambient data every handler receives.
type Context struct {
	RepoPath string
	TaskID   string
	// History is an opaque pointer into the conversation history manager for
	// handlers (none currently) that need it; kept as `any` to avoid an
	// import cycle between tools and conversation.
	History any
	// AIConfig carries the active model/provider/key for handlers that need
	// to call the LLM directly (none in the built-in set today, but kept per
	// §4.3/§9: ambient globals become an explicit context field).
	AIConfig any
}

// Handler is the interface every built-in or dynamically bridged tool
// implements.
type Handler interface {
	Name() string
	Spec() Spec
	Validate(raw map[string]any) (map[string]any, error)
	Execute(ctx context.Context, params map[string]any, tc Context) (any, error)
}

// Coordinator registers handlers keyed by name and dispatches calls,
// catching validation and execution failures into a failed Result (§4.5, §7).
type Coordinator struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func New() *Coordinator {
	return &Coordinator{handlers: make(map[string]Handler)}
}

// Register adds or replaces a handler under its own name.
func (c *Coordinator) Register(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[h.Name()] = h
}

// Unregister removes a handler by name; a no-op if absent.
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, name)
}

// UnregisterCategory removes every handler whose spec declares the given
// category. Used by the dynamic MCP tool bridge to clear all mcp_dynamic
// handlers before re-registering the current set (§4.4, §4.8).
func (c *Coordinator) UnregisterCategory(cat Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, h := range c.handlers {
		if h.Spec().Category == cat {
			delete(c.handlers, name)
		}
	}
}

// Execute validates parameters then executes the named handler, mapping any
// failure (missing handler, validation error, panic, or returned error) to a
// failed Result rather than propagating.
func (c *Coordinator) Execute(ctx context.Context, call Call, tc Context) (result Result) {
	c.mu.RLock()
	h, ok := c.handlers[call.Name]
	c.mu.RUnlock()

	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	validated, err := h.Validate(call.Parameters)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("参数验证失败: %v", err)}
	}

	defer func() {
		if r := recover(); r != nil {
			result = Result{Success: false, Error: fmt.Sprintf("tool panic: %v", r)}
		}
	}()

	data, err := h.Execute(ctx, validated, tc)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Data: data}
}

// ListTools returns every registered spec, sorted by name for determinism.
func (c *Coordinator) ListTools() []Spec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	specs := make([]Spec, 0, len(c.handlers))
	for _, h := range c.handlers {
		specs = append(specs, h.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// ListToolsByCategory filters ListTools to one category.
func (c *Coordinator) ListToolsByCategory(cat Category) []Spec {
	all := c.ListTools()
	out := make([]Spec, 0, len(all))
	for _, s := range all {
		if s.Category == cat {
			out = append(out, s)
		}
	}
	return out
}

// Validate enforces required parameters are present and, where a type is
// declared, that the supplied value is assignable to it. Returns a shallow
// copy of raw with Default values filled in for absent optional parameters.
func Validate(spec Spec, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for _, p := range spec.Parameters {
		v, present := out[p.Name]
		if !present {
			if p.Required {
				return nil, fmt.Errorf("missing required parameter %q", p.Name)
			}
			if p.Default != nil {
				out[p.Name] = p.Default
			}
			continue
		}
		if err := checkType(p, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func checkType(p ParamSpec, v any) error {
	switch p.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("parameter %q must be a string", p.Name)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", p.Name)
		}
	case TypeInteger, TypeNumber:
		switch v.(type) {
		case int, int64, float64, float32:
		default:
			return fmt.Errorf("parameter %q must be numeric", p.Name)
		}
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("parameter %q must be an array", p.Name)
		}
	case TypeObject:
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("parameter %q must be an object", p.Name)
		}
	}
	return nil
}
