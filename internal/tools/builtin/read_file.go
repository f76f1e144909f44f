package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/taskd/taskd/internal/tools"
)

const defaultMaxReadSize = 20 * 1024 * 1024 // 20 MiB

const truncationNotice = "\n\n[注意] 文件内容已被截断，因为它超过了允许的最大读取大小。" +
	"以上内容仅为文件的开头部分，如需查看完整内容，请缩小读取范围或分段读取。"

// ReadFileHandler implements read_file (§4.6).
type ReadFileHandler struct{}

func (ReadFileHandler) Name() string { return "read_file" }

func (ReadFileHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "read_file",
		Description: "Read the contents of a file in the repository.",
		Category:    tools.CategoryFile,
		Parameters: []tools.ParamSpec{
			{Name: "file_path", Type: tools.TypeString, Required: true, Description: "Path relative to the repository root."},
			{Name: "max_size", Type: tools.TypeInteger, Required: false, Default: float64(defaultMaxReadSize), Description: "Maximum bytes to read before truncating."},
		},
	}
}

func (h ReadFileHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (ReadFileHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	filePath, _ := params["file_path"].(string)
	maxSize := defaultMaxReadSize
	if v, ok := numberParam(params["max_size"]); ok && v > 0 {
		maxSize = int(v)
	}

	abs, err := resolveRepoPath(tc.RepoPath, filePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("read_file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read_file: %s is a directory", filePath)
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("read_file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("read_file: %w", err)
	}

	truncated := len(content) > maxSize
	var truncatedSize int
	if truncated {
		content = content[:maxSize]
		truncatedSize = maxSize
	}

	text, encoding := decodeContent(content)
	if truncated {
		text += truncationNotice
	}

	result := map[string]any{
		"file_path": toSlash(filePath),
		"content":   text,
		"size":      info.Size(),
		"encoding":  encoding,
		"truncated": truncated,
	}
	if truncated {
		result["truncated_size"] = truncatedSize
	}
	return result, nil
}

// decodeContent tries UTF-8 first, then falls back to Latin-1 (ISO-8859-1),
// mapping each byte directly to the matching Unicode code point (§4.6).
func decodeContent(b []byte) (string, string) {
	if utf8.Valid(b) {
		return string(b), "utf-8"
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes), "latin-1"
}

func numberParam(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
