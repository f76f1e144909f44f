package builtin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taskd/taskd/internal/tools"
)

func TestReadFileBasic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := ReadFileHandler{}
	params, err := h.Validate(map[string]any{"file_path": "README.md"})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	if result["content"] != "# Hello" || result["truncated"] != false {
		t.Fatalf("result = %+v", result)
	}
}

func TestReadFileRejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	h := ReadFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "../../etc/passwd"})
	_, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err == nil {
		t.Fatal("expected illegal path error")
	}
}

func TestReadFileRejectsLeadingSlash(t *testing.T) {
	dir := t.TempDir()
	h := ReadFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "/etc/passwd"})
	_, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err == nil {
		t.Fatal("expected illegal path error")
	}
}

func TestReadFileTruncatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("a", 100)
	if err := os.WriteFile(filepath.Join(dir, "big.txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	h := ReadFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "big.txt", "max_size": float64(10)})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	if result["truncated"] != true {
		t.Fatalf("expected truncated=true, got %+v", result)
	}
	if result["truncated_size"] != 10 {
		t.Fatalf("truncated_size = %v, want 10", result["truncated_size"])
	}
	if !strings.HasPrefix(result["content"].(string), strings.Repeat("a", 10)) {
		t.Fatalf("content does not start with expected prefix: %q", result["content"])
	}
}
