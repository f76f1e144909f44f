package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskd/taskd/internal/tools"
)

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestReplaceInFileMultiBlock(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "f.txt", "A\nB\nC\nD")

	diff := "------- SEARCH\n" +
		"A\n" +
		"=======\n" +
		"A1\n" +
		"+++++++ REPLACE\n" +
		"------- SEARCH\n" +
		"D\n" +
		"=======\n" +
		"D1\n" +
		"+++++++ REPLACE\n"

	h := ReplaceInFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "f.txt", "diff": diff})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	result := data.(map[string]any)
	if result["blocks_processed"] != 2 || result["lines_added"] != 2 || result["lines_removed"] != 2 {
		t.Fatalf("stats = %+v", result)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "f.txt"))
	if string(got) != "A1\nB\nC\nD1" {
		t.Fatalf("content = %q", got)
	}
}

func TestReplaceInFileNoOpWhenSearchEqualsReplace(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "f.txt", "hello\nworld")

	diff := "------- SEARCH\nhello\n=======\nhello\n+++++++ REPLACE\n"
	h := ReplaceInFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "f.txt", "diff": diff})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if data.(map[string]any)["changed"] != false {
		t.Fatalf("expected no-op, got %+v", data)
	}
}

func TestReplaceInFileLineTrimmedMatch(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "f.txt", "  indented line  \nkeep")

	diff := "------- SEARCH\nindented line\n=======\nfixed\n+++++++ REPLACE\n"
	h := ReplaceInFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "f.txt", "diff": diff})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if data.(map[string]any)["blocks_processed"] != 1 {
		t.Fatalf("expected trimmed match to succeed, got %+v", data)
	}
}

func TestReplaceInFileFailsWithUnmatchedBlock(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "f.txt", "one\ntwo")

	diff := "------- SEARCH\nnonexistent\n=======\nx\n+++++++ REPLACE\n"
	h := ReplaceInFileHandler{}
	params, _ := h.Validate(map[string]any{"file_path": "f.txt", "diff": diff})
	_, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err == nil {
		t.Fatal("expected error for unmatched block")
	}
}
