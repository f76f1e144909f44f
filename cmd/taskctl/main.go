// Package main implements taskctl, a command-line client for the taskd
// HTTP API: starting tasks and streaming their SSE progress to stdout, plus
// listing/resuming/favoriting/deleting tasks and managing MCP servers.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

var (
	serverURL string
	version   = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "CLI for the taskd task-execution daemon",
	Long: `taskctl is a command-line client for taskd's HTTP API.
It starts tasks and streams their progress, and manages task history and MCP servers.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "taskd server URL")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(healthCmd)
}
