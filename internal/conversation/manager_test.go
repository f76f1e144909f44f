package conversation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskd/taskd/internal/secrets"
)

func TestAppendAndSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("task-1", dir, nil, nil)

	m.AppendMessage(RoleUser, "<task>\ndo the thing\n</task>", nil, nil, "", 0)
	m.AppendMessage(RoleAssistant, "working on it", []ToolCall{
		{ID: "call-1", Name: "read_file", Parameters: map[string]any{"path": "main.go"}, Result: map[string]any{"content": "package main"}},
	}, nil, "gpt-4o", 42)

	require.NoError(t, m.SaveHistory())

	reloaded := NewManager("task-1", dir, nil, nil)
	found, err := reloaded.LoadHistory()
	require.NoError(t, err)
	assert.True(t, found)

	got := reloaded.Messages("", 0)
	require.Len(t, got, 2)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.Equal(t, RoleAssistant, got[1].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "call-1", got[1].ToolCalls[0].ID)
	assert.Equal(t, "read_file", got[1].ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"content": "package main"}, got[1].ToolCalls[0].Result)
}

func TestLoadHistoryMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("task-missing", dir, nil, nil)
	found, err := m.LoadHistory()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadHistoryRejectsTaskIDMismatch(t *testing.T) {
	dir := t.TempDir()
	writer := NewManager("task-a", dir, nil, nil)
	writer.AppendMessage(RoleUser, "hello", nil, nil, "", 0)
	require.NoError(t, writer.SaveHistory())

	raw, err := os.ReadFile(filepath.Join(dir, ".ai", "tasks", "task-a", "api_conversation_history.json"))
	require.NoError(t, err)

	taskBDir := filepath.Join(dir, ".ai", "tasks", "task-b")
	require.NoError(t, os.MkdirAll(taskBDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(taskBDir, "api_conversation_history.json"), raw, 0o644))

	reader := NewManager("task-b", dir, nil, nil)
	found, err := reader.LoadHistory()
	require.NoError(t, err)
	assert.False(t, found, "a history file stamped with a different task_id must not be adopted")
}

func TestMessagesFiltersByRoleAndLimit(t *testing.T) {
	m := NewManager("task-filter", t.TempDir(), nil, nil)
	m.AppendMessage(RoleUser, "one", nil, nil, "", 0)
	m.AppendMessage(RoleAssistant, "two", nil, nil, "", 0)
	m.AppendMessage(RoleUser, "three", nil, nil, "", 0)

	users := m.Messages(RoleUser, 0)
	require.Len(t, users, 2)

	last := m.Messages("", 1)
	require.Len(t, last, 1)
	assert.Equal(t, "three", last[0].Content)
}

func TestAppendMessageScrubsContent(t *testing.T) {
	scrubber, err := secrets.New(nil)
	require.NoError(t, err)

	m := NewManager("task-scrub", t.TempDir(), scrubber, nil)
	m.AppendMessage(RoleUser, "my key is sk-ant-REDACTED", nil, nil, "", 0)

	got := m.Messages("", 0)
	require.Len(t, got, 1)
	assert.NotContains(t, got[0].Content, "sk-ant-api03")
}

func TestDeleteHistoryFilesRemovesTaskDir(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("task-del", dir, nil, nil)
	m.AppendMessage(RoleUser, "hi", nil, nil, "", 0)
	require.NoError(t, m.SaveHistory())

	removed, err := m.DeleteHistoryFiles()
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = NewManager("task-del", dir, nil, nil).LoadHistory()
	require.NoError(t, err)

	removedAgain, err := m.DeleteHistoryFiles()
	require.NoError(t, err)
	assert.False(t, removedAgain)
}

func TestStatsCountsRolesAndTokens(t *testing.T) {
	dir := t.TempDir()
	m := NewManager("task-stats", dir, nil, nil)
	m.AppendMessage(RoleSystem, "sys", nil, nil, "", 0)
	m.AppendMessage(RoleUser, "hi", nil, nil, "", 10)
	m.AppendMessage(RoleAssistant, "hello", nil, nil, "gpt-4o", 20)
	require.NoError(t, m.SaveHistory())

	stats := m.Stats()
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 1, stats.SystemMessages)
	assert.Equal(t, 1, stats.UserMessages)
	assert.Equal(t, 1, stats.AssistantMessages)
	assert.Equal(t, 30, stats.TotalTokens)
	assert.True(t, stats.TaskDirExists)
	assert.Greater(t, stats.TaskDirSize, int64(0))
}
