package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
)

type vendor int

const (
	vendorAnthropic vendor = iota
	vendorGemini
)

// chatOnly implements Provider for vendors whose wire format isn't
// OpenAI-compatible and whose langchaingo backend does not speak function
// calling the way openAICompatible's does. It supports plain Chat; calling
// ChatWithTools returns an explicit error instead of quietly answering
// without the tools the caller asked for (§4.17 — the one place this repo
// deviates from silently degrading the way the source's provider stubs did).
type chatOnly struct {
	vendor vendor
}

func (c *chatOnly) model(req Request) (llms.Model, error) {
	switch c.vendor {
	case vendorAnthropic:
		opts := []anthropic.Option{anthropic.WithToken(req.APIKey), anthropic.WithModel(req.Model)}
		if req.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(req.BaseURL))
		}
		return anthropic.New(opts...)
	case vendorGemini:
		return googleai.New(context.Background(), googleai.WithAPIKey(req.APIKey), googleai.WithDefaultModel(req.Model))
	default:
		return nil, fmt.Errorf("provider: unknown vendor")
	}
}

func (c *chatOnly) Chat(ctx context.Context, req Request) (*Response, error) {
	model, err := c.model(req)
	if err != nil {
		return nil, fmt.Errorf("provider: build client: %w", err)
	}

	messages := toLangchainMessages(req)
	callOpts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("provider: generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider: empty response")
	}
	return fromLangchainChoice(resp.Choices[0]), nil
}

// ChatWithTools refuses rather than silently dropping the tool catalog: an
// engine that calls chat_with_tools unconditionally every iteration must see
// this as a terminal error event, not a plain-text reply that looks like the
// model chose not to use any tools.
func (c *chatOnly) ChatWithTools(ctx context.Context, req Request) (*Response, error) {
	return nil, fmt.Errorf("provider: %s does not support tool calling", vendorName(c.vendor))
}

func (c *chatOnly) TestConnection(ctx context.Context, apiKey, baseURL string) error {
	_, err := c.Chat(ctx, Request{APIKey: apiKey, BaseURL: baseURL, Model: testConnectionModel(c.vendor), MaxTokens: 1,
		Messages: []Message{{Role: RoleUser, Content: "ping"}}})
	return err
}

func vendorName(v vendor) string {
	switch v {
	case vendorAnthropic:
		return "anthropic"
	case vendorGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

func testConnectionModel(v vendor) string {
	switch v {
	case vendorAnthropic:
		return "claude-3-5-haiku-20241022"
	case vendorGemini:
		return "gemini-2.0-flash"
	default:
		return ""
	}
}
