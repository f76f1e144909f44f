package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List and manage task history",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTasksList,
}

var tasksResumeCmd = &cobra.Command{
	Use:   "resume <task-id> <prompt>",
	Short: "Resume an existing task with a new prompt",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksResume,
}

var tasksFavoriteCmd = &cobra.Command{
	Use:   "favorite <task-id>",
	Short: "Toggle a task's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksFavorite,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task and its conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDelete,
}

func init() {
	tasksListCmd.Flags().Bool("favorites", false, "only show favorited tasks")
	tasksListCmd.Flags().String("sort", "newest", "sort order: newest|oldest|cost")
	tasksListCmd.Flags().String("repo", "", "repository path (defaults to the daemon's configured workspace)")
	tasksResumeCmd.Flags().String("repo", "", "repository path (defaults to the daemon's configured workspace)")

	tasksCmd.AddCommand(tasksListCmd, tasksResumeCmd, tasksFavoriteCmd, tasksDeleteCmd)
}

func runTasksList(cmd *cobra.Command, args []string) error {
	favoritesOnly, _ := cmd.Flags().GetBool("favorites")
	sortBy, _ := cmd.Flags().GetString("sort")
	repo, _ := cmd.Flags().GetString("repo")

	q := url.Values{}
	if favoritesOnly {
		q.Set("favorites_only", "true")
	}
	if sortBy != "" {
		q.Set("sort_by", sortBy)
	}
	if repo != "" {
		q.Set("repository_path", repo)
	}

	body, err := httpGet(serverURL + "/api/tasks?" + q.Encode())
	if err != nil {
		return err
	}

	var items []map[string]any
	if err := json.Unmarshal(body, &items); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("no tasks found")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%-36v  %-10v  %v\n", item["id"], item["created_at"], item["task"])
	}
	return nil
}

func runTasksResume(cmd *cobra.Command, args []string) error {
	taskID, prompt := args[0], args[1]
	repo, _ := cmd.Flags().GetString("repo")
	return streamTask(repo, prompt, taskID)
}

func runTasksFavorite(cmd *cobra.Command, args []string) error {
	body, err := httpPost(fmt.Sprintf("%s/api/tasks/%s/favorite", serverURL, args[0]), nil)
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	return nil
}

func runTasksDelete(cmd *cobra.Command, args []string) error {
	req, err := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/tasks/%s", serverURL, args[0]), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, msg)
	}
	fmt.Printf("deleted task %s\n", args[0])
	return nil
}

func httpGet(endpoint string) ([]byte, error) {
	resp, err := http.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func httpPost(endpoint string, payload any) ([]byte, error) {
	var bodyReader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	resp, err := http.Post(endpoint, "application/json", bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
