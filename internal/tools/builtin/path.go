// Package builtin implements the built-in tool handlers: file read/write/
// replace, directory listing, regex search, code-definition extraction,
// read-only Git inspection, and the task-completion sentinel (§4.6).
package builtin

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrIllegalPath is returned whenever a caller-supplied file path escapes the
// repository root, or uses a leading "/", "./", or "../" segment (§4.6).
var ErrIllegalPath = errors.New("非法路径")

// resolveRepoPath validates rawPath against the §4.6 rules and returns its
// absolute on-disk location under repoRoot. rawPath must be relative, must
// not start with "/", "./", or "../", and the resolved absolute path must
// remain a prefix of the repository's absolute path.
func resolveRepoPath(repoRoot, rawPath string) (string, error) {
	if rawPath == "" {
		return "", ErrIllegalPath
	}
	if strings.HasPrefix(rawPath, "/") ||
		strings.HasPrefix(rawPath, "./") ||
		strings.HasPrefix(rawPath, "../") ||
		rawPath == ".." || rawPath == "." {
		return "", ErrIllegalPath
	}

	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return "", err
	}

	joined := filepath.Join(absRoot, rawPath)
	rel, err := filepath.Rel(absRoot, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrIllegalPath
	}

	return joined, nil
}

// toSlash normalizes path separators to "/" for tool output, matching the
// on-wire convention regardless of host OS.
func toSlash(p string) string {
	return filepath.ToSlash(p)
}

// skipEntry reports whether a directory-listing or search entry named name
// should be hidden: VCS/dependency/build-output directories and any
// dot-prefixed entry (§4.6).
func skipEntry(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "node_modules", "__pycache__", "venv", ".venv", "env",
		"dist", "build", "target", "bin", "obj", "vendor":
		return true
	}
	return false
}

// matchesExcludePattern reports whether relPath or its basename matches one
// of patterns. Patterns are gitignore-derived globs (e.g. "vendor/**"); a
// "/**" suffix also matches anything under that directory prefix, since
// filepath.Match alone doesn't support "**".
func matchesExcludePattern(relPath, basename string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, basename); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				return true
			}
		}
	}
	return false
}
