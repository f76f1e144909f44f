package builtin

import (
	"fmt"
	"os"
	"strings"

	"context"

	"github.com/taskd/taskd/internal/tools"
)

const (
	searchMarker  = "------- SEARCH"
	sepMarker     = "======="
	replaceMarker = "+++++++ REPLACE"
)

type diffBlock struct {
	search  string
	replace string
}

// ReplaceInFileHandler implements replace_in_file (§4.6): one or more
// SEARCH/REPLACE blocks applied left to right, each matched by the first of
// three strategies that succeeds.
type ReplaceInFileHandler struct{}

func (ReplaceInFileHandler) Name() string { return "replace_in_file" }

func (ReplaceInFileHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "replace_in_file",
		Description: "Apply one or more SEARCH/REPLACE blocks to a file.",
		Category:    tools.CategoryFile,
		Parameters: []tools.ParamSpec{
			{Name: "file_path", Type: tools.TypeString, Required: true},
			{Name: "diff", Type: tools.TypeString, Required: true},
		},
	}
}

func (h ReplaceInFileHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (ReplaceInFileHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	filePath, _ := params["file_path"].(string)
	diff, _ := params["diff"].(string)

	abs, err := resolveRepoPath(tc.RepoPath, filePath)
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("replace_in_file: %w", err)
	}

	blocks, err := parseDiffBlocks(diff)
	if err != nil {
		return nil, err
	}

	newContent, stats, err := applyDiffBlocks(string(original), blocks)
	if err != nil {
		return nil, err
	}

	changed := newContent != string(original)
	if changed {
		if err := os.WriteFile(abs, []byte(newContent), 0o644); err != nil {
			return nil, fmt.Errorf("replace_in_file: %w", err)
		}
	}

	return map[string]any{
		"changed":          changed,
		"blocks_processed": stats.BlocksProcessed,
		"lines_added":      stats.LinesAdded,
		"lines_removed":    stats.LinesRemoved,
		"bytes_added":      stats.BytesAdded,
		"bytes_removed":    stats.BytesRemoved,
	}, nil
}

func parseDiffBlocks(diff string) ([]diffBlock, error) {
	lines := strings.Split(diff, "\n")
	var blocks []diffBlock

	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) != searchMarker {
			i++
			continue
		}
		i++

		var searchLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != sepMarker {
			searchLines = append(searchLines, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("replace_in_file: unterminated SEARCH block (missing %q)", sepMarker)
		}
		i++ // skip separator

		var replaceLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != replaceMarker {
			replaceLines = append(replaceLines, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("replace_in_file: unterminated REPLACE block (missing %q)", replaceMarker)
		}
		i++ // skip replace marker

		blocks = append(blocks, diffBlock{
			search:  strings.Join(searchLines, "\n"),
			replace: strings.Join(replaceLines, "\n"),
		})
	}

	if len(blocks) == 0 {
		return nil, fmt.Errorf("replace_in_file: diff contains no SEARCH/REPLACE blocks")
	}
	return blocks, nil
}

type diffStats struct {
	BlocksProcessed int
	LinesAdded      int
	LinesRemoved    int
	BytesAdded      int
	BytesRemoved    int
}

// applyDiffBlocks applies each block against content's lines, advancing a
// cursor so later blocks search only the remainder of the file.
func applyDiffBlocks(content string, blocks []diffBlock) (string, diffStats, error) {
	lines := strings.Split(content, "\n")
	cursor := 0
	var stats diffStats

	for idx, b := range blocks {
		searchLines := strings.Split(b.search, "\n")
		replaceLines := strings.Split(b.replace, "\n")

		start, end, ok := matchExact(lines, searchLines, cursor)
		if !ok {
			start, end, ok = matchTrimmed(lines, searchLines, cursor)
		}
		if !ok && len(searchLines) >= 3 {
			start, end, ok = matchAnchored(lines, searchLines, cursor)
		}
		if !ok {
			preview := b.search
			if len(preview) > 200 {
				preview = preview[:200]
			}
			return "", diffStats{}, fmt.Errorf("replace_in_file: block %d did not match content (search: %q)", idx, preview)
		}

		removedText := strings.Join(lines[start:end], "\n")
		stats.BlocksProcessed++
		stats.LinesRemoved += end - start
		stats.LinesAdded += len(replaceLines)
		stats.BytesRemoved += len(removedText)
		stats.BytesAdded += len(b.replace)

		newLines := make([]string, 0, len(lines)-(end-start)+len(replaceLines))
		newLines = append(newLines, lines[:start]...)
		newLines = append(newLines, replaceLines...)
		newLines = append(newLines, lines[end:]...)
		lines = newLines
		cursor = start + len(replaceLines)
	}

	return strings.Join(lines, "\n"), stats, nil
}

// matchExact requires literal equality, line for line, from some index >= cursor.
func matchExact(lines, search []string, cursor int) (int, int, bool) {
	for i := cursor; i+len(search) <= len(lines); i++ {
		match := true
		for k, s := range search {
			if lines[i+k] != s {
				match = false
				break
			}
		}
		if match {
			return i, i + len(search), true
		}
	}
	return 0, 0, false
}

// matchTrimmed requires equality after stripping per-line whitespace.
func matchTrimmed(lines, search []string, cursor int) (int, int, bool) {
	for i := cursor; i+len(search) <= len(lines); i++ {
		match := true
		for k, s := range search {
			if strings.TrimSpace(lines[i+k]) != strings.TrimSpace(s) {
				match = false
				break
			}
		}
		if match {
			return i, i + len(search), true
		}
	}
	return 0, 0, false
}

// matchAnchored requires only the first and last trimmed lines to match,
// assuming the interior is contiguous — used for long search blocks where
// whitespace-insensitive equality of every interior line is too strict.
func matchAnchored(lines, search []string, cursor int) (int, int, bool) {
	first := strings.TrimSpace(search[0])
	last := strings.TrimSpace(search[len(search)-1])

	for i := cursor; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != first {
			continue
		}
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == last {
				return i, j + 1, true
			}
		}
	}
	return 0, 0, false
}
