// Package mcpbridge implements the MCP meta-tools (§4.7) and the dynamic
// per-server tool bridge (§4.8) on top of internal/mcpmanager.
package mcpbridge

import (
	"encoding/json"
	"strings"

	"github.com/taskd/taskd/internal/mcpclient"
)

const truncatedImageDataLimit = 80

// normalizeContent flattens an MCP content-item list into a single display
// string per §4.7's use_mcp_tool normalization rule, reused by
// access_mcp_resource and the dynamic bridge's execute().
func normalizeContent(items []mcpclient.ContentItem) string {
	var parts []string
	for _, item := range items {
		switch item.Type {
		case "text":
			parts = append(parts, item.Text)
		case "image":
			data := item.Data
			if len(data) > truncatedImageDataLimit {
				data = data[:truncatedImageDataLimit] + "..."
			}
			parts = append(parts, "[image: "+data+"]")
		case "resource":
			parts = append(parts, "[resource: "+string(item.Resource)+"]")
		default:
			raw, _ := json.Marshal(item)
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n\n")
}
