package taskhistory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrUpdateTaskCreatesThenUpdatesInPlace(t *testing.T) {
	m := NewManager(t.TempDir(), nil)

	item := m.AddOrUpdateTask("task-1", "do the thing", "openai", "gpt-4o", "/repo")
	require.NotNil(t, item)
	assert.Equal(t, "task-1", item.ID)
	assert.Equal(t, "do the thing", item.Task)
	firstUpdate := item.LastUpdated

	time.Sleep(time.Millisecond)
	updated := m.AddOrUpdateTask("task-1", "ignored on update", "", "", "")
	assert.Equal(t, "do the thing", updated.Task, "existing task's description is not overwritten")
	assert.True(t, updated.LastUpdated.After(firstUpdate))

	assert.Len(t, m.items, 1)
}

func TestAddOrUpdateTaskTruncatesDescription(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	item := m.AddOrUpdateTask("task-1", string(long), "", "", "")
	assert.Len(t, []rune(item.Task), taskDescriptionLimit)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, nil)
	m.AddOrUpdateTask("task-1", "first", "openai", "gpt-4o", dir)
	m.AddOrUpdateTask("task-2", "second", "anthropic", "claude-sonnet", dir)
	require.NoError(t, m.SaveHistory())

	reloaded := NewManager(dir, nil)
	found, err := reloaded.LoadHistory()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, reloaded.items, 2)
}

func TestLoadHistoryMissingFileIsNotAnError(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	found, err := m.LoadHistory()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSearchTasksFiltersAndSorts(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	m.items = []Item{
		{ID: "a", Task: "fix login bug", CreatedAt: time.Now().Add(-2 * time.Hour), TotalCost: 0.50},
		{ID: "b", Task: "refactor parser", CreatedAt: time.Now().Add(-1 * time.Hour), TotalCost: 2.00, IsFavorited: true},
		{ID: "c", Task: "login page redesign", CreatedAt: time.Now(), TotalCost: 0.10},
	}

	byQuery := m.SearchTasks(SearchOptions{Query: "login"})
	require.Len(t, byQuery, 2)

	favoritesOnly := m.SearchTasks(SearchOptions{FavoritesOnly: true})
	require.Len(t, favoritesOnly, 1)
	assert.Equal(t, "b", favoritesOnly[0].ID)

	byCost := m.SearchTasks(SearchOptions{SortBy: SortCost})
	require.Len(t, byCost, 3)
	assert.Equal(t, "b", byCost[0].ID)

	byOldest := m.SearchTasks(SearchOptions{SortBy: SortOldest})
	assert.Equal(t, "a", byOldest[0].ID)

	limited := m.SearchTasks(SearchOptions{Limit: 1, SortBy: SortNewest})
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].ID)
}

func TestToggleFavorite(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	m.AddOrUpdateTask("task-1", "desc", "", "", "")

	assert.True(t, m.ToggleFavorite("task-1"))
	assert.True(t, m.GetTask("task-1").IsFavorited)
	assert.False(t, m.ToggleFavorite("task-1"))
	assert.False(t, m.ToggleFavorite("missing"))
}

func TestDeleteTask(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	m.AddOrUpdateTask("task-1", "desc", "", "", "")

	assert.True(t, m.DeleteTask("task-1"))
	assert.Nil(t, m.GetTask("task-1"))
	assert.False(t, m.DeleteTask("task-1"))
}

func TestStatsAggregates(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	m.items = []Item{
		{ID: "a", TokensIn: 100, TokensOut: 50, TotalCost: 1.5, IsFavorited: true},
		{ID: "b", TokensIn: 20, TokensOut: 10, TotalCost: 0.5},
	}
	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalTasks)
	assert.Equal(t, 180, stats.TotalTokens)
	assert.InDelta(t, 2.0, stats.TotalCost, 0.0001)
	assert.Equal(t, 1, stats.FavoriteCount)
	assert.False(t, stats.HistoryFileExist)
}
