package builtin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/taskd/taskd/internal/tools"
)

const (
	searchFilesCacheSize  = 100
	searchFilesCacheTTL   = 5 * time.Minute
	searchMaxFileSize     = 1 * 1024 * 1024 // 1 MiB
	searchWorkerCount     = 4
	searchMaxCandidates   = 100
	defaultSearchMaxResults = 50
)

var binaryExtensions = map[string]bool{
	".pyc": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".ico": true, ".webp": true, ".zip": true, ".tar": true,
	".gz": true, ".7z": true, ".rar": true, ".mp3": true, ".mp4": true,
	".mov": true, ".avi": true, ".pdf": true, ".woff": true, ".woff2": true,
	".ttf": true, ".exe": true, ".dll": true, ".so": true, ".dylib": true,
}

type searchMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Match   string `json:"match"`
	Context string `json:"context"`
}

type searchCacheKey struct {
	pattern       string
	path          string
	filePattern   string
	caseSensitive bool
}

type searchCacheValue struct {
	matches     []searchMatch
	filesTotal  int
	expiresAt   time.Time
}

// SearchFilesHandler implements search_files (§4.6): a concurrent regex grep
// with a result cache keyed by (pattern, path, file_pattern, case_sensitive).
type SearchFilesHandler struct {
	mu    sync.Mutex
	cache *lru.Cache[searchCacheKey, searchCacheValue]
}

func NewSearchFilesHandler() *SearchFilesHandler {
	c, _ := lru.New[searchCacheKey, searchCacheValue](searchFilesCacheSize)
	return &SearchFilesHandler{cache: c}
}

func (*SearchFilesHandler) Name() string { return "search_files" }

func (*SearchFilesHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "search_files",
		Description: "Search file contents with a regular expression.",
		Category:    tools.CategorySearch,
		Parameters: []tools.ParamSpec{
			{Name: "pattern", Type: tools.TypeString, Required: true},
			{Name: "path", Type: tools.TypeString, Default: ""},
			{Name: "file_pattern", Type: tools.TypeString, Default: ""},
			{Name: "case_sensitive", Type: tools.TypeBoolean, Default: false},
			{Name: "max_results", Type: tools.TypeInteger, Default: float64(defaultSearchMaxResults)},
		},
	}
}

func (h *SearchFilesHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h *SearchFilesHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	start := time.Now()

	pattern, _ := params["pattern"].(string)
	path, _ := params["path"].(string)
	filePattern, _ := params["file_pattern"].(string)
	caseSensitive, _ := params["case_sensitive"].(bool)
	maxResults := defaultSearchMaxResults
	if v, ok := numberParam(params["max_results"]); ok && v > 0 {
		maxResults = int(v)
	}

	reSrc := pattern
	if !caseSensitive {
		reSrc = "(?i)" + pattern
	}
	re, err := regexp.Compile(reSrc)
	if err != nil {
		return nil, fmt.Errorf("search_files: invalid pattern: %w", err)
	}

	root := tc.RepoPath
	if path != "" {
		abs, err := resolveRepoPath(tc.RepoPath, path)
		if err != nil {
			return nil, err
		}
		root = abs
	}

	key := searchCacheKey{pattern: pattern, path: path, filePattern: filePattern, caseSensitive: caseSensitive}
	h.mu.Lock()
	if cached, ok := h.cache.Get(key); ok && time.Now().Before(cached.expiresAt) {
		h.mu.Unlock()
		return formatSearchResult(cached.matches, len(cached.matches), cached.filesTotal, maxResults, searchWorkerCount, start), nil
	}
	h.mu.Unlock()

	candidates, err := collectCandidates(root, filePattern)
	if err != nil {
		return nil, fmt.Errorf("search_files: %w", err)
	}
	filesTotal := len(candidates)
	if len(candidates) > searchMaxCandidates {
		candidates = candidates[:searchMaxCandidates]
	}

	matches, filesScanned := searchCandidates(candidates, re, tc.RepoPath, searchWorkerCount)
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].File != matches[j].File {
			return matches[i].File < matches[j].File
		}
		return matches[i].Line < matches[j].Line
	})

	h.mu.Lock()
	h.cache.Add(key, searchCacheValue{matches: matches, filesTotal: filesTotal, expiresAt: time.Now().Add(searchFilesCacheTTL)})
	h.mu.Unlock()

	return formatSearchResult(matches, filesScanned, filesTotal, maxResults, searchWorkerCount, start), nil
}

func formatSearchResult(matches []searchMatch, filesScanned, filesTotal, maxResults, concurrency int, start time.Time) map[string]any {
	out := matches
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return map[string]any{
		"matches": out,
		"performance": map[string]any{
			"files_scanned":   filesScanned,
			"files_total":     filesTotal,
			"search_time_ms":  time.Since(start).Milliseconds(),
			"concurrency":     concurrency,
		},
	}
}

func collectCandidates(root, filePattern string) ([]string, error) {
	var candidates []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if p != root && skipEntry(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if skipEntry(name) {
			return nil
		}
		if binaryExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if info.Size() > searchMaxFileSize {
			return nil
		}
		if filePattern != "" {
			if ok, _ := filepath.Match(filePattern, name); !ok {
				return nil
			}
		}
		candidates = append(candidates, p)
		return nil
	})
	return candidates, err
}

// searchCandidates greps each candidate file concurrently across a fixed
// worker pool, returning all matches and the count of files actually scanned.
func searchCandidates(candidates []string, re *regexp.Regexp, repoRoot string, workers int) ([]searchMatch, int) {
	jobs := make(chan string)
	results := make(chan []searchMatch)
	var scannedMu sync.Mutex
	scannedCount := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				m := grepFile(file, re, repoRoot)
				scannedMu.Lock()
				scannedCount++
				scannedMu.Unlock()
				if len(m) > 0 {
					results <- m
				}
			}
		}()
	}

	go func() {
		for _, c := range candidates {
			jobs <- c
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var all []searchMatch
	for m := range results {
		all = append(all, m...)
	}
	return all, scannedCount
}

func grepFile(path string, re *regexp.Regexp, repoRoot string) []searchMatch {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	rel, err := filepath.Rel(repoRoot, path)
	if err != nil {
		rel = path
	}
	rel = toSlash(rel)

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	var matches []searchMatch
	for i, line := range lines {
		loc := re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		ctxLines := lines[max(0, i-1):min(len(lines), i+2)]
		matches = append(matches, searchMatch{
			File:    rel,
			Line:    i + 1,
			Column:  loc[0] + 1,
			Match:   line[loc[0]:loc[1]],
			Context: strings.Join(ctxLines, "\n"),
		})
	}
	return matches
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
