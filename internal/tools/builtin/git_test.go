package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/taskd/taskd/internal/tools"
)

func initTestRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\nline two\n"), 0o644)
	if _, err := wt.Add("a.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sig := &object.Signature{Name: "tester", Email: "t@example.com", When: time.Unix(0, 0)}
	if _, err := wt.Commit("initial commit", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return dir, repo
}

func TestGitStatusCleanThenModified(t *testing.T) {
	dir, _ := initTestRepo(t)
	h := GitStatusHandler{}
	params, _ := h.Validate(map[string]any{})

	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if data.(map[string]any)["clean"] != true {
		t.Fatalf("expected clean status, got %+v", data)
	}

	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\nline TWO changed\n"), 0o644)
	data, err = h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if data.(map[string]any)["clean"] != false {
		t.Fatalf("expected dirty status after edit, got %+v", data)
	}
}

func TestGitLogReturnsCommit(t *testing.T) {
	dir, _ := initTestRepo(t)
	h := GitLogHandler{}
	params, _ := h.Validate(map[string]any{})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	commits := data.(map[string]any)["commits"].([]map[string]any)
	if len(commits) != 1 {
		t.Fatalf("expected 1 commit, got %+v", commits)
	}
	if commits[0]["message"] != "initial commit" {
		t.Fatalf("message = %v", commits[0]["message"])
	}
}

func TestGitBranchCurrentAndCreate(t *testing.T) {
	dir, _ := initTestRepo(t)
	h := GitBranchHandler{}

	params, _ := h.Validate(map[string]any{"action": "current"})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute current: %v", err)
	}
	_ = data.(map[string]any)["branch"]

	params, _ = h.Validate(map[string]any{"action": "create", "branch_name": "feature/x"})
	data, err = h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute create: %v", err)
	}
	if data.(map[string]any)["created"] != true {
		t.Fatalf("expected created=true, got %+v", data)
	}

	params, _ = h.Validate(map[string]any{"action": "switch", "branch_name": "feature/x"})
	data, err = h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute switch: %v", err)
	}
	if data.(map[string]any)["switched"] != true {
		t.Fatalf("expected switched=true, got %+v", data)
	}
}

func TestGitDiffUnstagedShowsEdit(t *testing.T) {
	dir, _ := initTestRepo(t)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("line one\nline TWO changed\n"), 0o644)

	h := GitDiffHandler{}
	params, _ := h.Validate(map[string]any{})
	data, err := h.Execute(context.Background(), params, tools.Context{RepoPath: dir})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	files := data.(map[string]any)["files"].([]gitDiffFile)
	if len(files) != 1 || files[0].Path != "a.txt" {
		t.Fatalf("expected diff for a.txt, got %+v", files)
	}
}
