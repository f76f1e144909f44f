package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Manage MCP servers known to the daemon",
}

var mcpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured MCP servers and their status",
	RunE:  runMCPList,
}

var mcpStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Start an MCP server",
	Args:  cobra.ExactArgs(1),
	RunE:  runMCPStart,
}

var mcpStopCmd = &cobra.Command{
	Use:   "stop <name>",
	Short: "Stop an MCP server",
	Args:  cobra.ExactArgs(1),
	RunE:  runMCPStop,
}

var mcpRestartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart an MCP server",
	Args:  cobra.ExactArgs(1),
	RunE:  runMCPRestart,
}

var mcpTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test connectivity to a configured MCP server",
	Long: `Test looks up <name>'s persisted configuration and re-posts it to the
daemon's connectivity-test endpoint, since the test endpoint itself is
stateless and takes a config rather than a name.`,
	Args: cobra.ExactArgs(1),
	RunE: runMCPTest,
}

func init() {
	mcpCmd.AddCommand(mcpListCmd, mcpStartCmd, mcpStopCmd, mcpRestartCmd, mcpTestCmd)
}

// mcpServerView mirrors internal/httpapi's GET /api/mcp/servers response shape.
type mcpServerView struct {
	Name   string `json:"name"`
	Status struct {
		Status string         `json:"status"`
		Config map[string]any `json:"config"`
	} `json:"status"`
}

func fetchMCPServers() ([]mcpServerView, error) {
	body, err := httpGet(serverURL + "/api/mcp/servers")
	if err != nil {
		return nil, err
	}
	var views []mcpServerView
	if err := json.Unmarshal(body, &views); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return views, nil
}

func runMCPList(cmd *cobra.Command, args []string) error {
	views, err := fetchMCPServers()
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("no MCP servers configured")
		return nil
	}
	for _, v := range views {
		fmt.Printf("%-20s %s\n", v.Name, v.Status.Status)
	}
	return nil
}

func runMCPStart(cmd *cobra.Command, args []string) error {
	body, err := httpPost(fmt.Sprintf("%s/api/mcp/servers/%s/start", serverURL, args[0]), nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runMCPStop(cmd *cobra.Command, args []string) error {
	body, err := httpPost(fmt.Sprintf("%s/api/mcp/servers/%s/stop", serverURL, args[0]), nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runMCPRestart(cmd *cobra.Command, args []string) error {
	body, err := httpPost(fmt.Sprintf("%s/api/mcp/servers/%s/restart", serverURL, args[0]), nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runMCPTest(cmd *cobra.Command, args []string) error {
	name := args[0]
	views, err := fetchMCPServers()
	if err != nil {
		return err
	}

	var found *mcpServerView
	for i := range views {
		if views[i].Name == name {
			found = &views[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("no MCP server named %q is configured", name)
	}

	body, err := httpPost(serverURL+"/api/mcp/servers/test", found.Status.Config)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
