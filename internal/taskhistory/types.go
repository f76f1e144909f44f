package taskhistory

import "time"

// Item is one task's metadata entry (§4.2): exactly one per directory
// under <repo>/.ai/tasks/<id>.
type Item struct {
	ID   string `json:"id"`
	Task string `json:"task"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`

	TokensIn    int `json:"tokens_in"`
	TokensOut   int `json:"tokens_out"`
	CacheWrites int `json:"cache_writes"`
	CacheReads  int `json:"cache_reads"`

	TotalCost float64 `json:"total_cost"`

	Size        int64 `json:"size"`
	IsFavorited bool  `json:"is_favorited"`

	APIProvider string `json:"api_provider,omitempty"`
	APIModel    string `json:"api_model,omitempty"`

	RepositoryPath string `json:"repository_path,omitempty"`
}

// taskDescriptionLimit is the max length of a task's stored description
// (the first N characters of the user's input, per §4.2).
const taskDescriptionLimit = 100

// truncateDescription mirrors the "first 100 chars of user input" rule.
func truncateDescription(input string) string {
	runes := []rune(input)
	if len(runes) <= taskDescriptionLimit {
		return input
	}
	return string(runes[:taskDescriptionLimit])
}

// SortBy selects search_tasks' ordering.
type SortBy string

const (
	SortNewest SortBy = "newest"
	SortOldest SortBy = "oldest"
	SortCost   SortBy = "cost"
)

// SearchOptions filters and orders search_tasks' result (§4.12).
type SearchOptions struct {
	Query         string
	FavoritesOnly bool
	SortBy        SortBy
	Limit         int
}

// Stats summarizes the whole task history index.
type Stats struct {
	TotalTasks       int     `json:"total_tasks"`
	TotalTokens      int     `json:"total_tokens"`
	TotalCost        float64 `json:"total_cost"`
	FavoriteCount    int     `json:"favorite_count"`
	HistoryFileExist bool    `json:"history_file_exists"`
}
