package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskd/taskd/internal/ignore"
	"github.com/taskd/taskd/internal/tools"
)

const (
	listFilesCacheSize = 50
	listFilesCacheTTL  = 3 * time.Minute
	defaultMaxDepth    = 10
	defaultMaxResults  = 1000
)

type fileEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type listFilesCacheKey struct {
	directory string
	recursive bool
	maxDepth  int
}

type listFilesCacheValue struct {
	entries   []fileEntry
	truncated bool
	expiresAt time.Time
}

// ListFilesHandler implements list_files (§4.6), caching results per
// (directory, recursive, max_depth) for 3 minutes in a 50-entry LRU.
type ListFilesHandler struct {
	mu           sync.Mutex
	cache        *lru.Cache[listFilesCacheKey, listFilesCacheValue]
	ignoreParser *ignore.Parser
}

func NewListFilesHandler() *ListFilesHandler {
	c, _ := lru.New[listFilesCacheKey, listFilesCacheValue](listFilesCacheSize)
	return &ListFilesHandler{
		cache: c,
		ignoreParser: ignore.NewParser(
			[]string{".gitignore", ".dockerignore", ".taskdignore"},
			[]string{
				".git/**", "node_modules/**", "__pycache__/**", "venv/**",
				".venv/**", "env/**", "dist/**", "build/**", "target/**",
				"bin/**", "obj/**", "vendor/**",
			},
		),
	}
}

func (*ListFilesHandler) Name() string { return "list_files" }

func (*ListFilesHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "list_files",
		Description: "List files and directories in the repository.",
		Category:    tools.CategoryFile,
		Parameters: []tools.ParamSpec{
			{Name: "directory", Type: tools.TypeString, Default: ""},
			{Name: "recursive", Type: tools.TypeBoolean, Default: false},
			{Name: "max_depth", Type: tools.TypeInteger, Default: float64(defaultMaxDepth)},
			{Name: "max_results", Type: tools.TypeInteger, Default: float64(defaultMaxResults)},
		},
	}
}

func (h *ListFilesHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h *ListFilesHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	start := time.Now()

	directory, _ := params["directory"].(string)
	recursive, _ := params["recursive"].(bool)
	maxDepth := defaultMaxDepth
	if v, ok := numberParam(params["max_depth"]); ok && v > 0 {
		maxDepth = int(v)
	}
	maxResults := defaultMaxResults
	if v, ok := numberParam(params["max_results"]); ok {
		maxResults = int(v)
	}

	var root string
	var err error
	if directory == "" {
		root = tc.RepoPath
	} else {
		root, err = resolveRepoPath(tc.RepoPath, directory)
		if err != nil {
			return nil, err
		}
	}

	key := listFilesCacheKey{directory: directory, recursive: recursive, maxDepth: maxDepth}

	h.mu.Lock()
	if cached, ok := h.cache.Get(key); ok && time.Now().Before(cached.expiresAt) {
		h.mu.Unlock()
		return h.format(cached.entries, cached.truncated, maxResults, start), nil
	}
	h.mu.Unlock()

	excludePatterns, err := h.ignoreParser.ParseProject(tc.RepoPath)
	if err != nil {
		excludePatterns = h.ignoreParser.FallbackPatterns
	}

	entries, truncated, err := walkEntries(root, tc.RepoPath, recursive, maxDepth, 50000, excludePatterns)
	if err != nil {
		return nil, fmt.Errorf("list_files: %w", err)
	}

	h.mu.Lock()
	h.cache.Add(key, listFilesCacheValue{entries: entries, truncated: truncated, expiresAt: time.Now().Add(listFilesCacheTTL)})
	h.mu.Unlock()

	return h.format(entries, truncated, maxResults, start), nil
}

func (h *ListFilesHandler) format(entries []fileEntry, walkTruncated bool, maxResults int, start time.Time) map[string]any {
	out := entries
	truncated := walkTruncated
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
		truncated = true
	}
	return map[string]any{
		"entries": out,
		"performance": map[string]any{
			"time_ms": time.Since(start).Milliseconds(),
		},
		"truncated": truncated,
	}
}

// walkEntries lists root's contents. When recursive is false, only the
// immediate children are returned. A hard cap (independent of max_results)
// prevents runaway scans of enormous trees. excludePatterns are gitignore-
// derived globs (from ignore.Parser.ParseProject) checked in addition to the
// baseline dot-file/VCS/build-output skip list.
func walkEntries(root, repoRoot string, recursive bool, maxDepth int, hardCap int, excludePatterns []string) ([]fileEntry, bool, error) {
	var entries []fileEntry
	truncated := false

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		items, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

		for _, item := range items {
			if skipEntry(item.Name()) {
				continue
			}
			if len(entries) >= hardCap {
				truncated = true
				return nil
			}

			full := filepath.Join(dir, item.Name())
			rel, err := filepath.Rel(repoRoot, full)
			if err != nil {
				continue
			}
			rel = toSlash(rel)

			if matchesExcludePattern(rel, item.Name(), excludePatterns) {
				continue
			}

			entryType := "file"
			var size int64
			if item.IsDir() {
				entryType = "directory"
			} else if info, err := item.Info(); err == nil {
				size = info.Size()
			}

			entries = append(entries, fileEntry{
				Name: item.Name(),
				Path: rel,
				Type: entryType,
				Size: size,
			})

			if item.IsDir() && recursive && depth < maxDepth {
				if err := walk(full, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(root, 0); err != nil {
		return nil, false, err
	}
	return entries, truncated, nil
}
