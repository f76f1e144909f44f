package taskengine

import (
	"encoding/json"
	"fmt"

	"github.com/taskd/taskd/internal/contextcompress"
	"github.com/taskd/taskd/internal/conversation"
	"github.com/taskd/taskd/internal/provider"
	"github.com/taskd/taskd/internal/tokencount"
)

const toolCallRenderLimit = 500

// buildMessages implements §4.10 step 2: render the persisted history
// (flattening any stored tool calls into readable inline text) and run the
// context compressor, returning the message list ready to send to the
// provider plus the compression stats for observability.
func buildMessages(history []conversation.Message, model string) ([]provider.Message, contextcompress.Stats) {
	asTokenMessages := make([]tokencount.Message, 0, len(history))
	for _, m := range history {
		asTokenMessages = append(asTokenMessages, tokencount.Message{
			Role:    string(m.Role),
			Content: renderMessageContent(m),
		})
	}

	compressed, stats := contextcompress.Compress(asTokenMessages, model)

	out := make([]provider.Message, 0, len(compressed))
	for _, m := range compressed {
		out = append(out, provider.Message{Role: provider.Role(m.Role), Content: m.Content})
	}
	return out, stats
}

// renderMessageContent flattens a conversation message's tool calls (if any)
// into the readable "[工具调用] <desc>\n结果: <truncated>" text the model
// sees alongside the message's own content, per §4.10 step 2.
func renderMessageContent(m conversation.Message) string {
	content := m.Content
	for _, tc := range m.ToolCalls {
		content += "\n" + renderToolCall(tc)
	}
	return content
}

func renderToolCall(tc conversation.ToolCall) string {
	params, _ := json.Marshal(tc.Parameters)
	desc := fmt.Sprintf("%s(%s)", tc.Name, string(params))

	result := "(pending)"
	if tc.Result != nil {
		if b, err := json.Marshal(tc.Result); err == nil {
			result = string(b)
		}
	}
	return fmt.Sprintf("[工具调用] %s\n结果: %s", desc, truncate(result, toolCallRenderLimit))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
