package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/taskd/taskd/internal/tools"
	pkggit "github.com/taskd/taskd/pkg/git"
)

// GitStatusHandler implements git_status (§4.6).
type GitStatusHandler struct{}

func (GitStatusHandler) Name() string { return "git_status" }

func (GitStatusHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "git_status",
		Description: "Report the working tree and staging status of the repository.",
		Category:    tools.CategoryGit,
	}
}

func (h GitStatusHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (GitStatusHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	repo, err := git.PlainOpen(tc.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("git_status: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("git_status: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("git_status: %w", err)
	}

	var entries []map[string]any
	var paths []string
	for path := range status {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fs := status[path]
		entries = append(entries, map[string]any{
			"path":     toSlash(path),
			"staging":  statusCodeName(fs.Staging),
			"worktree": statusCodeName(fs.Worktree),
		})
	}

	branch := "detached"
	if head, err := repo.Head(); err == nil && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return map[string]any{
		"branch":  branch,
		"clean":   len(entries) == 0,
		"entries": entries,
	}, nil
}

func statusCodeName(code git.StatusCode) string {
	switch code {
	case git.Unmodified:
		return "unmodified"
	case git.Untracked:
		return "untracked"
	case git.Modified:
		return "modified"
	case git.Added:
		return "added"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	case git.Copied:
		return "copied"
	case git.UpdatedButUnmerged:
		return "updated_unmerged"
	default:
		return "unknown"
	}
}

const defaultGitLogLimit = 10

// GitLogHandler implements git_log (§4.6).
type GitLogHandler struct{}

func (GitLogHandler) Name() string { return "git_log" }

func (GitLogHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "git_log",
		Description: "List recent commits, optionally filtered to a single file.",
		Category:    tools.CategoryGit,
		Parameters: []tools.ParamSpec{
			{Name: "limit", Type: tools.TypeInteger, Default: float64(defaultGitLogLimit)},
			{Name: "file_path", Type: tools.TypeString, Default: ""},
		},
	}
}

func (h GitLogHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (GitLogHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	limit := defaultGitLogLimit
	if v, ok := numberParam(params["limit"]); ok && v > 0 {
		limit = int(v)
	}
	filePath, _ := params["file_path"].(string)

	repo, err := git.PlainOpen(tc.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("git_log: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("git_log: %w", err)
	}

	opts := &git.LogOptions{From: head.Hash()}
	if filePath != "" {
		rel := toSlash(filePath)
		opts.FileName = &rel
	}

	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("git_log: %w", err)
	}
	defer iter.Close()

	var commits []map[string]any
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= limit {
			return storerStop
		}
		commits = append(commits, map[string]any{
			"hash":    c.Hash.String(),
			"author":  c.Author.Name,
			"email":   c.Author.Email,
			"date":    c.Author.When.Format("2006-01-02T15:04:05Z07:00"),
			"message": strings.TrimRight(c.Message, "\n"),
		})
		return nil
	})
	if err != nil && err != storerStop {
		return nil, fmt.Errorf("git_log: %w", err)
	}

	return map[string]any{"commits": commits}, nil
}

// storerStop is a sentinel returned from CommitIter.ForEach to stop early
// once the requested limit of commits has been collected.
var storerStop = fmt.Errorf("git_log: limit reached")

type gitDiffHunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type gitDiffFile struct {
	Path  string        `json:"path"`
	Hunks []gitDiffHunk `json:"hunks"`
}

// GitDiffHandler implements git_diff (§4.6).
type GitDiffHandler struct{}

func (GitDiffHandler) Name() string { return "git_diff" }

func (GitDiffHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "git_diff",
		Description: "Show unstaged or staged changes, optionally for a single file.",
		Category:    tools.CategoryGit,
		Parameters: []tools.ParamSpec{
			{Name: "file_path", Type: tools.TypeString, Default: ""},
			{Name: "staged", Type: tools.TypeBoolean, Default: false},
		},
	}
}

func (h GitDiffHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (GitDiffHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	filePath, _ := params["file_path"].(string)
	staged, _ := params["staged"].(bool)

	repo, err := git.PlainOpen(tc.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("git_diff: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("git_diff: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("git_diff: %w", err)
	}

	var candidates []string
	if filePath != "" {
		candidates = []string{toSlash(filePath)}
	} else {
		for path, fs := range status {
			if staged && fs.Staging != git.Unmodified {
				candidates = append(candidates, path)
			}
			if !staged && fs.Worktree != git.Unmodified {
				candidates = append(candidates, path)
			}
		}
	}
	sort.Strings(candidates)

	var files []gitDiffFile
	for _, path := range candidates {
		var oldContent, newContent string
		if staged {
			oldContent, _ = headTreeContent(repo, path)
			newContent, _ = indexContent(repo, path)
		} else {
			oldContent, _ = indexContent(repo, path)
			newContent, _ = workingTreeContent(tc.RepoPath, path)
		}
		if oldContent == newContent {
			continue
		}
		files = append(files, gitDiffFile{Path: path, Hunks: diffLines(oldContent, newContent)})
	}

	return map[string]any{"staged": staged, "files": files}, nil
}

func headTreeContent(repo *git.Repository, path string) (string, bool) {
	head, err := repo.Head()
	if err != nil {
		return "", false
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", false
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", false
	}
	f, err := tree.File(path)
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	if err != nil {
		return "", false
	}
	return content, true
}

func indexContent(repo *git.Repository, path string) (string, bool) {
	idx, err := repo.Storer.Index()
	if err != nil {
		return "", false
	}
	for _, entry := range idx.Entries {
		if toSlash(entry.Name) != path {
			continue
		}
		blob, err := repo.BlobObject(entry.Hash)
		if err != nil {
			return "", false
		}
		r, err := blob.Reader()
		if err != nil {
			return "", false
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return "", false
		}
		return string(data), true
	}
	return "", false
}

func workingTreeContent(repoRoot, path string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(repoRoot, filepath.FromSlash(path)))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// diffLines produces a coarse line-level diff using a char-per-line encoding
// so the underlying Myers diff operates on whole lines, not characters.
func diffLines(oldContent, newContent string) []gitDiffHunk {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var hunks []gitDiffHunk
	for _, d := range diffs {
		var kind string
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = "equal"
		case diffmatchpatch.DiffInsert:
			kind = "insert"
		case diffmatchpatch.DiffDelete:
			kind = "delete"
		}
		hunks = append(hunks, gitDiffHunk{Type: kind, Text: d.Text})
	}
	return hunks
}

// GitBranchHandler implements git_branch (§4.6).
type GitBranchHandler struct{}

func (GitBranchHandler) Name() string { return "git_branch" }

func (GitBranchHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "git_branch",
		Description: "List, inspect, create, or switch branches.",
		Category:    tools.CategoryGit,
		Parameters: []tools.ParamSpec{
			{Name: "action", Type: tools.TypeString, Required: true},
			{Name: "branch_name", Type: tools.TypeString, Default: ""},
		},
	}
}

func (h GitBranchHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (GitBranchHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	action, _ := params["action"].(string)
	branchName, _ := params["branch_name"].(string)

	repo, err := git.PlainOpen(tc.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("git_branch: %w", err)
	}

	switch action {
	case "list":
		iter, err := repo.Branches()
		if err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		defer iter.Close()
		var names []string
		err = iter.ForEach(func(ref *plumbing.Reference) error {
			names = append(names, ref.Name().Short())
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		sort.Strings(names)
		return map[string]any{"branches": names}, nil

	case "current":
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		if !head.Name().IsBranch() {
			return map[string]any{"branch": "detached", "detached": true}, nil
		}
		name := head.Name().Short()
		return map[string]any{"branch": name, "detached": false, "is_main": pkggit.IsMainBranch(name)}, nil

	case "create":
		if branchName == "" {
			return nil, fmt.Errorf("git_branch: branch_name is required for create")
		}
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), head.Hash())
		if err := repo.Storer.SetReference(ref); err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		return map[string]any{"branch": branchName, "created": true}, nil

	case "switch":
		if branchName == "" {
			return nil, fmt.Errorf("git_branch: branch_name is required for switch")
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branchName)}); err != nil {
			return nil, fmt.Errorf("git_branch: %w", err)
		}
		return map[string]any{"branch": branchName, "switched": true}, nil

	default:
		return nil, fmt.Errorf("git_branch: unknown action %q", action)
	}
}
