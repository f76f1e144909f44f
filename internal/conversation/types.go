package conversation

import "time"

// Role is a conversation message's sender (§4.2).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ToolCall records one tool invocation attached to an assistant message. A
// Result is present iff the tool actually executed; ids are unique within
// the owning message.
type ToolCall struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
	Result     map[string]any `json:"result,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// DeletedRange marks the half-open [Start, End) message index range a
// compression pass removed, recorded on the message that triggered it.
type DeletedRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Message is one turn of a task's conversation.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`

	ToolCalls   []ToolCall       `json:"tool_calls,omitempty"`
	ToolResults []map[string]any `json:"tool_results,omitempty"`

	Model      string `json:"model,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`

	CompressionDeletedRange *DeletedRange `json:"compression_deleted_range,omitempty"`
}

// historyFile is the on-disk shape of api_conversation_history.json (§4.12).
type historyFile struct {
	TaskID        string    `json:"task_id"`
	WorkspacePath string    `json:"workspace_path"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	MessageCount  int       `json:"message_count"`
	Messages      []Message `json:"messages"`
}

// Stats summarizes one task's stored conversation.
type Stats struct {
	TaskID            string `json:"task_id"`
	TotalMessages     int    `json:"total_messages"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	SystemMessages    int    `json:"system_messages"`
	TotalTokens       int    `json:"total_tokens"`
	TaskDirExists     bool   `json:"task_dir_exists"`
	TaskDirSize       int64  `json:"task_dir_size"`
}
