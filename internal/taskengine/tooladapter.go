package taskengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taskd/taskd/internal/provider"
	"github.com/taskd/taskd/internal/tools"
)

const (
	toolResultDataLimit  = 10_000
	toolResultTruncation = "\n...[结果已截断]"
)

// toolDefinitions converts the coordinator's live spec list to the
// provider's function-calling tool shape, recomputed fresh on every call
// (§4.10 step 3) so dynamic MCP tools track the current server set.
// Grounded on original_source/.../task/tools_converter.py's
// tools_to_openai_functions/_build_parameters_schema.
func toolDefinitions(specs []tools.Spec) []provider.ToolDefinition {
	defs := make([]provider.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		defs = append(defs, provider.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  paramSchema(s.Parameters),
		})
	}
	return defs
}

func paramSchema(params []tools.ParamSpec) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// parseArguments decodes a provider tool call's raw JSON argument string
// into the coordinator's parameter map. An empty string is treated as no
// arguments rather than an error.
func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return map[string]any{}, fmt.Errorf("taskengine: invalid tool call arguments: %w", err)
	}
	return params, nil
}

// truncateResultData caps a tool result's serialized data at 10 000
// characters, appending a notice when it is cut (§4.10 step 7).
func truncateResultData(result tools.Result) tools.Result {
	s, ok := result.Data.(string)
	if !ok {
		b, err := json.Marshal(result.Data)
		if err != nil {
			return result
		}
		s = string(b)
	}
	if len([]rune(s)) <= toolResultDataLimit {
		return result
	}
	result.Data = truncate(s, toolResultDataLimit) + toolResultTruncation
	return result
}

// formatToolResultsXML implements §4.10 step 9: concatenate every result of
// one iteration into the <response><tool>...</response> block that becomes
// the next iteration's user content. This framing is retained deliberately
// (unlike the XML tool-*call* parser, which spec.md's design notes treat as
// dead code) because the event table and message-building rule both assume
// it.
func formatToolResultsXML(names []string, results []tools.Result) string {
	var sb strings.Builder
	for i, result := range results {
		name := ""
		if i < len(names) {
			name = names[i]
		}

		sb.WriteString("<response>\n")
		fmt.Fprintf(&sb, "<tool>%s</tool>\n", name)
		if result.Success {
			sb.WriteString("<status>success</status>\n")
			if result.Data != nil {
				data, _ := json.MarshalIndent(result.Data, "", "  ")
				sb.WriteString("<data>\n```json\n")
				sb.Write(data)
				sb.WriteString("\n```\n</data>\n")
			}
		} else {
			sb.WriteString("<status>error</status>\n")
			fmt.Fprintf(&sb, "<error>%s</error>\n", result.Error)
		}
		sb.WriteString("</response>\n\n")
	}
	return sb.String()
}
