package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/taskd/taskd/internal/tools"
)

type codeDefinition struct {
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Line       int      `json:"line"`
	Decorators []string `json:"decorators,omitempty"`
}

// ListCodeDefinitionsHandler implements list_code_definitions (§4.6): a
// per-language top-level definition scan selected by file extension.
type ListCodeDefinitionsHandler struct{}

func (ListCodeDefinitionsHandler) Name() string { return "list_code_definitions" }

func (ListCodeDefinitionsHandler) Spec() tools.Spec {
	return tools.Spec{
		Name:        "list_code_definitions",
		Description: "List top-level class/function/type definitions in a source file.",
		Category:    tools.CategoryAnalysis,
		Parameters: []tools.ParamSpec{
			{Name: "file_path", Type: tools.TypeString, Required: true},
		},
	}
}

func (h ListCodeDefinitionsHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (ListCodeDefinitionsHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	filePath, _ := params["file_path"].(string)

	abs, err := resolveRepoPath(tc.RepoPath, filePath)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("list_code_definitions: %w", err)
	}
	lines := strings.Split(string(raw), "\n")

	var defs []codeDefinition
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".py":
		defs = definitionsPython(lines)
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs":
		defs = definitionsJSLike(lines)
	case ".c", ".h", ".cc", ".cpp", ".cxx", ".hpp", ".java", ".cs":
		defs = definitionsCFamily(lines)
	case ".go":
		defs = definitionsGo(lines)
	default:
		defs = definitionsFallback(lines)
	}

	return map[string]any{
		"file_path":   toSlash(filePath),
		"definitions": defs,
	}, nil
}

var pyDefRe = regexp.MustCompile(`^(\s*)(class|def)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// definitionsPython uses indentation to select classes and top-level or
// single-indent-level functions, matching the teacher-reader's indent rule.
func definitionsPython(lines []string) []codeDefinition {
	var defs []codeDefinition
	for i, line := range lines {
		m := pyDefRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(strings.Replace(m[1], "\t", "    ", -1))
		kind := "function"
		if m[2] == "class" {
			kind = "class"
		}
		if kind == "class" && indent > 0 {
			continue
		}
		if kind == "function" && indent > 4 {
			continue
		}
		defs = append(defs, codeDefinition{Type: kind, Name: m[3], Line: i + 1})
	}
	return defs
}

var (
	jsClassRe  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsFuncRe   = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsMethodRe = regexp.MustCompile(`^\s*(?:public|private|protected|static|async)?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^)]*\)\s*(?::\s*[A-Za-z0-9_$<>\[\].| ]+)?\s*\{`)
	jsConstFuncRe = regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?\([^)]*\)\s*(?:=>|:)`)
)

func definitionsJSLike(lines []string) []codeDefinition {
	var defs []codeDefinition
	for i, line := range lines {
		if m := jsClassRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: "class", Name: m[1], Line: i + 1})
			continue
		}
		if m := jsFuncRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: "function", Name: m[1], Line: i + 1})
			continue
		}
		if m := jsConstFuncRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: "function", Name: m[1], Line: i + 1})
			continue
		}
		if m := jsMethodRe.FindStringSubmatch(line); m != nil && m[1] != "if" && m[1] != "for" && m[1] != "while" && m[1] != "switch" && m[1] != "catch" {
			defs = append(defs, codeDefinition{Type: "method", Name: m[1], Line: i + 1})
		}
	}
	return defs
}

var (
	cClassRe     = regexp.MustCompile(`^\s*(?:template\s*<[^>]*>\s*)?(class|struct|interface)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	cPrototypeRe = regexp.MustCompile(`^\s*(?:[A-Za-z_][A-Za-z0-9_:<>,\s\*&]*\s+)+([A-Za-z_][A-Za-z0-9_]*)\s*\([^;{]*\)\s*\{`)
)

func definitionsCFamily(lines []string) []codeDefinition {
	var defs []codeDefinition
	for i, line := range lines {
		if m := cClassRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: m[1], Name: m[2], Line: i + 1})
			continue
		}
		if m := cPrototypeRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			if name == "if" || name == "for" || name == "while" || name == "switch" || name == "catch" {
				continue
			}
			defs = append(defs, codeDefinition{Type: "function", Name: name, Line: i + 1})
		}
	}
	return defs
}

var (
	goTypeRe = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(struct|interface|\S)`)
	goFuncRe = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
)

func definitionsGo(lines []string) []codeDefinition {
	var defs []codeDefinition
	for i, line := range lines {
		if m := goTypeRe.FindStringSubmatch(line); m != nil {
			kind := "type"
			switch m[2] {
			case "struct":
				kind = "struct"
			case "interface":
				kind = "interface"
			}
			defs = append(defs, codeDefinition{Type: kind, Name: m[1], Line: i + 1})
			continue
		}
		if m := goFuncRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: "func", Name: m[1], Line: i + 1})
		}
	}
	return defs
}

var fallbackDefRe = regexp.MustCompile(`^\s*(?:function|def|class|func|sub|proc)\s+([A-Za-z_][A-Za-z0-9_]*)`)

func definitionsFallback(lines []string) []codeDefinition {
	var defs []codeDefinition
	for i, line := range lines {
		if m := fallbackDefRe.FindStringSubmatch(line); m != nil {
			defs = append(defs, codeDefinition{Type: "definition", Name: m[1], Line: i + 1})
		}
	}
	return defs
}
