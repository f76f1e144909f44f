package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openAICompatible implements Provider against any OpenAI chat-completions
// compatible endpoint via langchaingo's openai backend, parameterized by
// base URL and API key per request.
type openAICompatible struct{}

func (o *openAICompatible) client(req Request) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithToken(req.APIKey),
		openai.WithModel(req.Model),
	}
	if req.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(req.BaseURL))
	}
	return openai.New(opts...)
}

func (o *openAICompatible) Chat(ctx context.Context, req Request) (*Response, error) {
	return o.call(ctx, req, nil)
}

func (o *openAICompatible) ChatWithTools(ctx context.Context, req Request) (*Response, error) {
	return o.call(ctx, req, req.Tools)
}

func (o *openAICompatible) call(ctx context.Context, req Request, tools []ToolDefinition) (*Response, error) {
	client, err := o.client(req)
	if err != nil {
		return nil, fmt.Errorf("provider: build client: %w", err)
	}

	messages := toLangchainMessages(req)

	callOpts := []llms.CallOption{
		llms.WithTemperature(req.Temperature),
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if len(tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(toLangchainTools(tools)))
	}

	resp, err := client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("provider: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider: empty response")
	}

	return fromLangchainChoice(resp.Choices[0]), nil
}

func (o *openAICompatible) TestConnection(ctx context.Context, apiKey, baseURL string) error {
	client, err := o.client(Request{APIKey: apiKey, BaseURL: baseURL, Model: "gpt-4o-mini"})
	if err != nil {
		return fmt.Errorf("provider: build client: %w", err)
	}
	_, err = client.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, "ping"),
	}, llms.WithMaxTokens(1))
	if err != nil {
		return fmt.Errorf("provider: test connection: %w", err)
	}
	return nil
}

// toLangchainMessages converts the request's system prompt and message
// history into langchaingo's MessageContent form, preserving assistant
// tool-calls and tool results so a multi-turn tool conversation round-trips.
func toLangchainMessages(req Request) []llms.MessageContent {
	var messages []llms.MessageContent
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{ToolCallID: m.ToolCallID, Content: m.Content},
				},
			})
		case RoleAssistant:
			parts := []llms.ContentPart{}
			if m.Content != "" {
				parts = append(parts, llms.TextContent{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:           tc.ID,
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		default:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	return messages
}

func toLangchainTools(defs []ToolDefinition) []llms.Tool {
	tools := make([]llms.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		})
	}
	return tools
}

func fromLangchainChoice(choice *llms.ContentChoice) *Response {
	out := &Response{Content: choice.Content}

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
		})
	}

	if info := choice.GenerationInfo; info != nil {
		out.Usage = Usage{
			PromptTokens:     intFromInfo(info, "PromptTokens"),
			CompletionTokens: intFromInfo(info, "CompletionTokens"),
			TotalTokens:      intFromInfo(info, "TotalTokens"),
		}
	}
	return out
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
