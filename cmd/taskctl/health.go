package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check taskd server health",
	Long: `Check the health status of the taskd HTTP server.

Examples:
  taskctl health
  taskctl health --server http://localhost:8080`,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	body, err := httpGet(serverURL + "/health")
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}
