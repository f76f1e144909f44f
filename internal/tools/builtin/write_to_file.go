package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskd/taskd/internal/tools"
)

// WriteToFileHandler implements write_to_file (§4.6).
type WriteToFileHandler struct{}

func (WriteToFileHandler) Name() string { return "write_to_file" }

func (WriteToFileHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "write_to_file",
		Description: "Create or overwrite a file with the given content.",
		Category:    tools.CategoryFile,
		Parameters: []tools.ParamSpec{
			{Name: "file_path", Type: tools.TypeString, Required: true},
			{Name: "content", Type: tools.TypeString, Required: true},
			{Name: "create_directories", Type: tools.TypeBoolean, Default: true},
		},
	}
}

func (h WriteToFileHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (WriteToFileHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	filePath, _ := params["file_path"].(string)
	content, _ := params["content"].(string)
	createDirs, _ := params["create_directories"].(bool)

	abs, err := resolveRepoPath(tc.RepoPath, filePath)
	if err != nil {
		return nil, err
	}

	action := "created"
	var oldSize int64
	if info, statErr := os.Stat(abs); statErr == nil {
		action = "updated"
		oldSize = info.Size()
	}

	if createDirs {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("write_to_file: %w", err)
		}
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write_to_file: %w", err)
	}

	return map[string]any{
		"action":   action,
		"old_size": oldSize,
		"new_size": int64(len(content)),
	}, nil
}
