package taskhistory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Manager owns the workspace's task history index at
// <repo>/.ai/history/task_history.json.
type Manager struct {
	workspacePath string
	historyDir    string
	historyFile   string

	items []Item

	logger *zap.Logger
}

// NewManager creates a task history manager rooted at workspacePath.
func NewManager(workspacePath string, logger *zap.Logger) *Manager {
	historyDir := filepath.Join(workspacePath, ".ai", "history")
	return &Manager{
		workspacePath: workspacePath,
		historyDir:    historyDir,
		historyFile:   filepath.Join(historyDir, "task_history.json"),
		logger:        logger,
	}
}

// LoadHistory reads the persisted item array. A missing file is not an
// error: the index starts empty.
func (m *Manager) LoadHistory() (bool, error) {
	raw, err := os.ReadFile(m.historyFile)
	if err != nil {
		if os.IsNotExist(err) {
			m.items = nil
			return false, nil
		}
		return false, fmt.Errorf("taskhistory: read history: %w", err)
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		m.items = nil
		return false, fmt.Errorf("taskhistory: parse history: %w", err)
	}
	m.items = items
	if m.logger != nil {
		m.logger.Info("task history loaded", zap.Int("tasks", len(m.items)))
	}
	return true, nil
}

// SaveHistory writes the full item array to task_history.json.
func (m *Manager) SaveHistory() error {
	if err := os.MkdirAll(m.historyDir, 0o755); err != nil {
		return fmt.Errorf("taskhistory: create history dir: %w", err)
	}
	raw, err := json.MarshalIndent(m.items, "", "  ")
	if err != nil {
		return fmt.Errorf("taskhistory: encode history: %w", err)
	}
	if err := os.WriteFile(m.historyFile, raw, 0o644); err != nil {
		return fmt.Errorf("taskhistory: write history: %w", err)
	}
	if m.logger != nil {
		m.logger.Info("task history saved", zap.Int("tasks", len(m.items)))
	}
	return nil
}

// AddOrUpdateTask inserts a new Item for taskID, or — if one already
// exists — bumps its LastUpdated and returns it unchanged otherwise. New
// items trigger a creation-time-descending re-sort of the whole index.
func (m *Manager) AddOrUpdateTask(taskID, taskDescription, apiProvider, apiModel, repositoryPath string) *Item {
	for i := range m.items {
		if m.items[i].ID == taskID {
			m.items[i].LastUpdated = time.Now()
			return &m.items[i]
		}
	}

	now := time.Now()
	item := Item{
		ID:             taskID,
		Task:           truncateDescription(taskDescription),
		CreatedAt:      now,
		LastUpdated:    now,
		APIProvider:    apiProvider,
		APIModel:       apiModel,
		RepositoryPath: repositoryPath,
	}
	m.items = append(m.items, item)

	sort.Slice(m.items, func(i, j int) bool {
		return m.items[i].CreatedAt.After(m.items[j].CreatedAt)
	})

	if m.logger != nil {
		m.logger.Info("task added to history", zap.String("task_id", taskID))
	}

	for i := range m.items {
		if m.items[i].ID == taskID {
			return &m.items[i]
		}
	}
	return &item
}

// GetTask returns the Item for taskID, or nil if not present.
func (m *Manager) GetTask(taskID string) *Item {
	for i := range m.items {
		if m.items[i].ID == taskID {
			return &m.items[i]
		}
	}
	return nil
}

// SearchTasks applies query/favorites/sort/limit filters over the index.
func (m *Manager) SearchTasks(opts SearchOptions) []Item {
	items := make([]Item, len(m.items))
	copy(items, m.items)

	if opts.FavoritesOnly {
		filtered := items[:0:0]
		for _, item := range items {
			if item.IsFavorited {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if opts.Query != "" {
		query := strings.ToLower(opts.Query)
		filtered := items[:0:0]
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Task), query) || strings.Contains(strings.ToLower(item.ID), query) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	switch opts.SortBy {
	case SortOldest:
		sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	case SortCost:
		sort.Slice(items, func(i, j int) bool { return items[i].TotalCost > items[j].TotalCost })
	default:
		sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ToggleFavorite flips taskID's IsFavorited flag and bumps LastUpdated,
// returning the new value. Returns false if the task is not present.
func (m *Manager) ToggleFavorite(taskID string) bool {
	item := m.GetTask(taskID)
	if item == nil {
		return false
	}
	item.IsFavorited = !item.IsFavorited
	item.LastUpdated = time.Now()
	if m.logger != nil {
		m.logger.Info("task favorite toggled", zap.String("task_id", taskID), zap.Bool("is_favorited", item.IsFavorited))
	}
	return item.IsFavorited
}

// DeleteTask removes taskID's entry from the index, returning whether it
// was present. It does not touch the task's on-disk conversation directory
// (see internal/conversation.Manager.DeleteHistoryFiles).
func (m *Manager) DeleteTask(taskID string) bool {
	before := len(m.items)
	filtered := m.items[:0:0]
	for _, item := range m.items {
		if item.ID != taskID {
			filtered = append(filtered, item)
		}
	}
	m.items = filtered
	deleted := len(m.items) < before
	if deleted && m.logger != nil {
		m.logger.Info("task deleted from history", zap.String("task_id", taskID))
	}
	return deleted
}

// Stats aggregates counts/tokens/cost across the whole index.
func (m *Manager) Stats() Stats {
	stats := Stats{TotalTasks: len(m.items)}
	for _, item := range m.items {
		stats.TotalTokens += item.TokensIn + item.TokensOut
		stats.TotalCost += item.TotalCost
		if item.IsFavorited {
			stats.FavoriteCount++
		}
	}
	if _, err := os.Stat(m.historyFile); err == nil {
		stats.HistoryFileExist = true
	}
	return stats
}
