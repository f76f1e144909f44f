package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/sanitize"
	"github.com/taskd/taskd/internal/secrets"
)

// Manager holds and persists one task's conversation history (§4.12).
type Manager struct {
	taskID        string
	workspacePath string
	taskDir       string
	historyFile   string

	messages []Message

	scrubber secrets.Scrubber
	logger   *zap.Logger
}

// NewManager creates a history manager for taskID rooted at workspacePath.
// scrubber may be nil, in which case content is persisted unscrubbed. taskID
// may come from an HTTP caller resuming a task (§6), so it's sanitized
// before being joined into a filesystem path.
func NewManager(taskID, workspacePath string, scrubber secrets.Scrubber, logger *zap.Logger) *Manager {
	safeID := safeTaskDirName(taskID, logger)
	taskDir := filepath.Join(workspacePath, ".ai", "tasks", safeID)
	return &Manager{
		taskID:        taskID,
		workspacePath: workspacePath,
		taskDir:       taskDir,
		historyFile:   filepath.Join(taskDir, "api_conversation_history.json"),
		scrubber:      scrubber,
		logger:        logger,
	}
}

// safeTaskDirName returns taskID unchanged if it's safe to use as a single
// path segment (no separators, no traversal sequences), and otherwise
// rewrites it with sanitize.Identifier so a caller-supplied task id can
// never escape workspacePath/.ai/tasks.
func safeTaskDirName(taskID string, logger *zap.Logger) string {
	if taskID != "" && !strings.ContainsAny(taskID, `/\`) && !strings.Contains(taskID, "..") {
		return taskID
	}
	if logger != nil {
		logger.Warn("task id is unsafe for use as a path segment, sanitizing", zap.String("raw_task_id", taskID))
	}
	return sanitize.Identifier(taskID)
}

// AppendMessage records a new message, scrubbing its content first.
func (m *Manager) AppendMessage(role Role, content string, toolCalls []ToolCall, toolResults []map[string]any, model string, tokensUsed int) Message {
	if m.scrubber != nil {
		content = m.scrubber.Scrub(content).Scrubbed
	}
	msg := Message{
		Timestamp:   time.Now(),
		Role:        role,
		Content:     content,
		ToolCalls:   toolCalls,
		ToolResults: toolResults,
		Model:       model,
		TokensUsed:  tokensUsed,
	}
	m.messages = append(m.messages, msg)
	if m.logger != nil {
		m.logger.Debug("appended conversation message",
			zap.String("task_id", m.taskID),
			zap.String("role", string(role)),
			zap.Int("length", len(content)),
		)
	}
	return msg
}

// SetToolResult attaches an executed tool's result to the matching
// ToolCall by id, searching assistant messages from most recent to least
// recent. Returns false if no tool call with that id is found. Upholds the
// invariant that a result exists on a tool call iff it has executed (§3).
func (m *Manager) SetToolResult(callID string, result map[string]any) bool {
	for i := len(m.messages) - 1; i >= 0; i-- {
		msg := &m.messages[i]
		if msg.Role != RoleAssistant {
			continue
		}
		for j := range msg.ToolCalls {
			if msg.ToolCalls[j].ID == callID {
				msg.ToolCalls[j].Result = result
				return true
			}
		}
	}
	return false
}

// Messages returns the in-memory message list, optionally filtered by role
// and/or limited to the most recent n entries.
func (m *Manager) Messages(role Role, limit int) []Message {
	out := m.messages
	if role != "" {
		filtered := make([]Message, 0, len(out))
		for _, msg := range out {
			if msg.Role == role {
				filtered = append(filtered, msg)
			}
		}
		out = filtered
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	result := make([]Message, len(out))
	copy(result, out)
	return result
}

// RecordCompression tags the most recent message with the range a
// compression pass deleted, for observability; it does not remove anything
// from the persisted history.
func (m *Manager) RecordCompression(deleted DeletedRange) {
	if len(m.messages) == 0 {
		return
	}
	m.messages[len(m.messages)-1].CompressionDeletedRange = &deleted
}

// SaveHistory writes the full message log to api_conversation_history.json.
func (m *Manager) SaveHistory() error {
	if err := os.MkdirAll(m.taskDir, 0o755); err != nil {
		return fmt.Errorf("conversation: create task dir: %w", err)
	}

	createdAt := time.Now()
	if len(m.messages) > 0 {
		createdAt = m.messages[0].Timestamp
	}

	data := historyFile{
		TaskID:        m.taskID,
		WorkspacePath: m.workspacePath,
		CreatedAt:     createdAt,
		UpdatedAt:     time.Now(),
		MessageCount:  len(m.messages),
		Messages:      m.messages,
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("conversation: encode history: %w", err)
	}
	if err := os.WriteFile(m.historyFile, raw, 0o644); err != nil {
		return fmt.Errorf("conversation: write history: %w", err)
	}

	if m.logger != nil {
		m.logger.Info("conversation history saved",
			zap.String("task_id", m.taskID),
			zap.Int("messages", len(m.messages)),
		)
	}
	return nil
}

// LoadHistory reads a previously saved history for this task, replacing the
// in-memory message list. A missing file is not an error: it returns
// (false, nil), the signal to start a fresh task. A task-id mismatch inside
// the file is treated the same way, since it means the file belongs to a
// different task.
func (m *Manager) LoadHistory() (bool, error) {
	raw, err := os.ReadFile(m.historyFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("conversation: read history: %w", err)
	}

	var data historyFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return false, fmt.Errorf("conversation: parse history: %w", err)
	}

	if data.TaskID != m.taskID {
		if m.logger != nil {
			m.logger.Warn("conversation history task_id mismatch",
				zap.String("expected", m.taskID),
				zap.String("found", data.TaskID),
			)
		}
		return false, nil
	}

	m.messages = data.Messages
	if m.logger != nil {
		m.logger.Info("conversation history loaded",
			zap.String("task_id", m.taskID),
			zap.Int("messages", len(m.messages)),
		)
	}
	return true, nil
}

// ClearHistory empties the in-memory message list without touching disk.
func (m *Manager) ClearHistory() {
	m.messages = nil
}

// DeleteHistoryFiles removes the task's entire on-disk directory. Returns
// false (no error) if the directory did not exist.
func (m *Manager) DeleteHistoryFiles() (bool, error) {
	if _, err := os.Stat(m.taskDir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(m.taskDir); err != nil {
		return false, fmt.Errorf("conversation: delete task dir: %w", err)
	}
	if m.logger != nil {
		m.logger.Info("conversation task directory deleted", zap.String("task_id", m.taskID))
	}
	return true, nil
}

// Stats computes summary statistics for this task's stored conversation.
func (m *Manager) Stats() Stats {
	stats := Stats{TaskID: m.taskID, TotalMessages: len(m.messages)}
	for _, msg := range m.messages {
		switch msg.Role {
		case RoleUser:
			stats.UserMessages++
		case RoleAssistant:
			stats.AssistantMessages++
		case RoleSystem:
			stats.SystemMessages++
		}
		stats.TotalTokens += msg.TokensUsed
	}

	if info, err := os.Stat(m.taskDir); err == nil && info.IsDir() {
		stats.TaskDirExists = true
		stats.TaskDirSize = dirSize(m.taskDir)
	}
	return stats
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
