package promptbuilder

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/tools"
)

const roleAndRules = `# taskd — AI-powered code analysis assistant

You are an expert coding assistant operating on a local Git repository. Your
job is to complete the user's task, not to narrate it.

## Hard rules

- Use tools to gather information and make changes; never describe what a
  tool would show instead of calling it.
- Do not open a response with conversational filler ("Sure", "Got it",
  "I'll now..."). Start executing.
- Call exactly one tool per turn, then wait for its result before deciding
  the next step. Never assume a tool's output.
- Respect file paths the user gives you exactly as given.
- Call attempt_completion only once every requested side effect has
  actually been performed, and never before then.
`

const filePathConventions = `
## File paths

- Always use paths relative to the repository root, with forward slashes.
- Never prefix a path with "./" or use "../" to escape the repository.
- Never use an absolute path.
`

const workflowDescription = `
## Workflow

1. Understand what the user is asking for.
2. Assess what information you already have and what you still need.
3. Pick the single most useful tool for the next step.
4. Execute it and wait for the result.
5. Analyze the result.
6. Continue to the next step, or call attempt_completion if the task is done.
`

// Builder assembles the system prompt from the coordinator's live tool
// catalog and the MCP manager's current server set.
type Builder struct {
	coordinator *tools.Coordinator
	manager     *mcpmanager.Manager
}

func NewBuilder(coordinator *tools.Coordinator, manager *mcpmanager.Manager) *Builder {
	return &Builder{coordinator: coordinator, manager: manager}
}

// Build renders the full system prompt for a task rooted at repoPath.
func (b *Builder) Build(ctx context.Context, repoPath string) string {
	var sb strings.Builder
	sb.WriteString(roleAndRules)
	sb.WriteString(filePathConventions)
	sb.WriteString(workflowDescription)
	sb.WriteString(b.toolCatalog())
	sb.WriteString(b.mcpSection(ctx))
	fmt.Fprintf(&sb, "\n## Repository\n\n- Absolute path: %s\n", repoPath)
	return sb.String()
}

// toolCatalog renders every registered tool except category mcp (the
// list_mcp_servers/use_mcp_tool/access_mcp_resource meta-tools), which are
// described by the MCP section instead.
func (b *Builder) toolCatalog() string {
	var sb strings.Builder
	sb.WriteString("\n## Available tools\n")

	specs := b.coordinator.ListTools()
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })

	for _, spec := range specs {
		if spec.Category == tools.CategoryMCP {
			continue
		}
		fmt.Fprintf(&sb, "\n### %s\n\n%s\n", spec.Name, spec.Description)
		if len(spec.Parameters) == 0 {
			continue
		}
		sb.WriteString("\nParameters:\n")
		for _, p := range spec.Parameters {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&sb, "- %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
		}
	}
	return sb.String()
}

// mcpSection describes every enabled MCP server whose status is not
// not_configured: name, description, transport, status, and — when
// connected — its tool and resource lists.
func (b *Builder) mcpSection(ctx context.Context) string {
	if b.manager == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n## MCP servers\n")

	anyConfigured := false
	for _, name := range b.manager.ListConfigured() {
		report := b.manager.Status(name)
		if report.Status == mcpmanager.StatusNotConfigured {
			continue
		}
		anyConfigured = true

		fmt.Fprintf(&sb, "\n### %s\n\n", name)
		fmt.Fprintf(&sb, "- Description: %s\n", report.Config.Description)
		fmt.Fprintf(&sb, "- Transport: %s\n", report.Config.TransportType)
		fmt.Fprintf(&sb, "- Status: %s\n", report.Status)

		if report.Status != mcpmanager.StatusRunning {
			continue
		}

		if mcpTools, err := b.manager.ListTools(ctx, name); err == nil && len(mcpTools) > 0 {
			sb.WriteString("- Tools:\n")
			for _, t := range mcpTools {
				fmt.Fprintf(&sb, "  - %s: %s (schema: %s)\n", t.Name, t.Description, string(t.InputSchema))
			}
		}
		if resources, err := b.manager.ListResources(ctx, name); err == nil && len(resources) > 0 {
			sb.WriteString("- Resources:\n")
			for _, r := range resources {
				fmt.Fprintf(&sb, "  - %s (%s): %s\n", r.Name, r.URI, r.Description)
			}
		}
	}

	if !anyConfigured {
		sb.WriteString("\n(no MCP servers configured)\n")
	}
	return sb.String()
}
