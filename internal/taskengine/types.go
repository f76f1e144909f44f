package taskengine

import (
	"sync/atomic"

	"github.com/taskd/taskd/internal/tools"
)

// EventType is one of the SSE event kinds in §6's event table.
type EventType string

const (
	EventTaskStarted            EventType = "task_started"
	EventAPIRequestStarted      EventType = "api_request_started"
	EventAPIResponse            EventType = "api_response"
	EventToolCallsDetected      EventType = "tool_calls_detected"
	EventToolExecutionStarted   EventType = "tool_execution_started"
	EventToolExecutionCompleted EventType = "tool_execution_completed"
	EventCompletion             EventType = "completion"
	EventError                  EventType = "error"
	EventAborted                EventType = "aborted"
)

// ToolCallSummary is the {name,parameters} shape tool_calls_detected reports.
type ToolCallSummary struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// Event is one item of the task's SSE stream. Fields are populated
// according to Type; see §6's event table for which fields each type
// carries.
type Event struct {
	Type EventType `json:"type"`

	TaskID    string `json:"task_id,omitempty"`
	IsNewTask bool   `json:"is_new_task,omitempty"`

	Iteration    int `json:"iteration,omitempty"`
	MessageCount int `json:"message_count,omitempty"`

	Content string `json:"content,omitempty"`
	Result  string `json:"result,omitempty"`

	ToolCalls  []ToolCallSummary `json:"tool_calls,omitempty"`
	ToolName   string            `json:"tool_name,omitempty"`
	ToolResult *tools.Result     `json:"tool_result,omitempty"`

	Message string `json:"message,omitempty"`
}

// AIConfig carries the active model/provider selection for one task,
// threaded through tools.Context for handlers that call the LLM directly
// (§4.3/§9).
type AIConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// taskState tracks the mutable bookkeeping the loop checks each iteration:
// consecutive mistakes and a cooperative abort flag (§4.10, §5).
type taskState struct {
	consecutiveMistakes int
	apiRequestCount     int
	abort               atomic.Bool
}

func (s *taskState) incrementMistakes() {
	s.consecutiveMistakes++
}

func (s *taskState) incrementAPIRequests() {
	s.apiRequestCount++
}

func (s *taskState) shouldAbort() bool {
	return s.abort.Load()
}

// Abort requests cancellation of the task at the next iteration boundary.
func (s *taskState) Abort() {
	s.abort.Store(true)
}
