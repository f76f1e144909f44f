package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskd/taskd/internal/tools"
)

func setupTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "src"), 0o755)
	os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
	os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755)
	os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi"), 0o644)
	os.WriteFile(filepath.Join(dir, "src", "main.go"), []byte("package main"), 0o644)
	os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644)
	os.WriteFile(filepath.Join(dir, "node_modules", "pkg.json"), []byte("{}"), 0o644)
	return dir
}

func TestListFilesSkipsIgnoredDirs(t *testing.T) {
	dir := setupTree(t)
	h := NewListFilesHandler()
	params, _ := h.Validate(map[string]any{})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	entries := result["entries"].([]fileEntry)
	for _, e := range entries {
		if e.Name == ".git" || e.Name == "node_modules" {
			t.Fatalf("expected %s to be skipped, entries=%+v", e.Name, entries)
		}
	}
}

func TestListFilesRecursive(t *testing.T) {
	dir := setupTree(t)
	h := NewListFilesHandler()
	params, _ := h.Validate(map[string]any{"recursive": true})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	entries := result["entries"].([]fileEntry)
	found := false
	for _, e := range entries {
		if e.Path == "src/main.go" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected src/main.go in recursive listing, got %+v", entries)
	}
}

func TestListFilesCaches(t *testing.T) {
	dir := setupTree(t)
	h := NewListFilesHandler()
	params, _ := h.Validate(map[string]any{})

	if _, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Remove a file; cached listing should still report it (within TTL).
	os.Remove(filepath.Join(dir, "README.md"))

	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	entries := result["entries"].([]fileEntry)
	found := false
	for _, e := range entries {
		if e.Name == "README.md" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected cached listing to still contain README.md")
	}
}
