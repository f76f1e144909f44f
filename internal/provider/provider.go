package provider

import (
	"context"
	"fmt"
)

// Role mirrors the roles the chat-completions wire format accepts.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation sent to the provider. ToolCallID
// and ToolCalls are only meaningful for Role==RoleTool and Role==RoleAssistant
// respectively (an assistant turn that invoked tools carries them forward so
// the provider can see what it already asked for).
type Message struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolDefinition describes one callable tool in JSON-Schema-ish form, as
// rendered by internal/tools.Coordinator.ListTools.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one invocation the model emitted. Arguments is the raw
// JSON-encoded argument object, exactly as the wire format returns it — the
// caller (task engine) is responsible for parsing it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage reports token accounting for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request bundles everything one chat call needs.
type Request struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition

	APIKey  string
	BaseURL string

	Temperature float64
	MaxTokens   int
}

// Response is a provider's reply: textual content plus zero or more tool
// calls the model chose to make.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the narrow interface the task engine depends on (§4.17): plain
// chat, tool-augmented chat, and a connectivity probe. Only one concrete
// implementation exists (openAICompatible) since every vendor in the
// Registry speaks the same wire format.
type Provider interface {
	Chat(ctx context.Context, req Request) (*Response, error)
	ChatWithTools(ctx context.Context, req Request) (*Response, error)
	TestConnection(ctx context.Context, apiKey, baseURL string) error
}

// Registry resolves a provider id (as stored in task/AI config) to a
// Provider plus its default base URL. Every entry shares the single
// OpenAI-compatible implementation.
type Registry struct {
	defaults map[string]string
}

// NewRegistry seeds the registry with every vendor the source supported.
// openai, deepseek, moonshot, glm (普通版), glm_coding (编码套餐), and
// openrouter are OpenAI-compatible over HTTP and share openAICompatible.
// anthropic and gemini speak their own wire formats; they get chatOnly,
// which implements Chat against their native SDKs but deliberately refuses
// ChatWithTools (§4.17) rather than silently degrading to a tool-less reply
// the way the source's chat_with_tools stub did.
func NewRegistry() *Registry {
	return &Registry{defaults: map[string]string{
		"openai":     "https://api.openai.com/v1",
		"deepseek":   "https://api.deepseek.com/v1",
		"moonshot":   "https://api.moonshot.ai/v1",
		"glm":        "https://open.bigmodel.cn/api/paas/v4",
		"glm_coding": "https://open.bigmodel.cn/api/coding/paas/v4",
		"openrouter": "https://openrouter.ai/api/v1",
		"anthropic":  "",
		"gemini":     "",
	}}
}

// Resolve returns the Provider for id and fills in its default base URL when
// baseURL is empty.
func (r *Registry) Resolve(id, baseURL string) (Provider, string, error) {
	def, ok := r.defaults[id]
	if !ok {
		return nil, "", fmt.Errorf("provider: unsupported provider %q", id)
	}
	if baseURL == "" {
		baseURL = def
	}

	switch id {
	case "anthropic":
		return &chatOnly{vendor: vendorAnthropic}, baseURL, nil
	case "gemini":
		return &chatOnly{vendor: vendorGemini}, baseURL, nil
	default:
		return &openAICompatible{}, baseURL, nil
	}
}
