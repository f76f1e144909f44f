package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskd/taskd/internal/taskengine"
)

var runCmd = &cobra.Command{
	Use:   "run <repo-path> <prompt>",
	Short: "Start a task and stream its progress",
	Long: `Start a new task against a repository and stream its SSE progress to stdout
until a completion, error, or aborted event arrives.

Examples:
  taskctl run . "fix the failing test in internal/foo"
  taskctl run /path/to/repo "summarize recent changes" --server http://localhost:8080`,
	Args: cobra.ExactArgs(2),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("task-id", "", "resume an existing task instead of starting a new one")
}

// startTaskRequest mirrors internal/httpapi's request body.
type startTaskRequest struct {
	RepositoryPath string              `json:"repository_path"`
	Input          string              `json:"input"`
	TaskID         string              `json:"task_id,omitempty"`
	AIConfig       taskengine.AIConfig `json:"ai_config"`
}

func runRun(cmd *cobra.Command, args []string) error {
	taskID, _ := cmd.Flags().GetString("task-id")
	return streamTask(args[0], args[1], taskID)
}

func streamTask(repoPath, prompt, taskID string) error {
	reqBody := startTaskRequest{
		RepositoryPath: repoPath,
		Input:          prompt,
		TaskID:         taskID,
		AIConfig:       aiConfigFromEnv(),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, serverURL+"/api/tasks", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 0}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return printEvents(resp.Body)
}

// printEvents reads an SSE stream of "event: <type>\ndata: <json>\n\n"
// frames and prints a human-readable line per event, stopping at a
// terminal event type.
func printEvents(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var ev taskengine.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				fmt.Printf("[taskctl] failed to parse event %q: %v\n", eventType, err)
				continue
			}
			printEvent(ev)
			if ev.Type == taskengine.EventCompletion || ev.Type == taskengine.EventError || ev.Type == taskengine.EventAborted {
				return nil
			}
		}
	}
	return scanner.Err()
}

func printEvent(ev taskengine.Event) {
	timestamp := time.Now().Format("15:04:05")
	switch ev.Type {
	case taskengine.EventTaskStarted:
		fmt.Printf("[%s] task %s started (new=%v)\n", timestamp, ev.TaskID, ev.IsNewTask)
	case taskengine.EventAPIRequestStarted:
		fmt.Printf("[%s] iteration %d: requesting model response\n", timestamp, ev.Iteration)
	case taskengine.EventAPIResponse:
		if ev.Content != "" {
			fmt.Printf("[%s] %s\n", timestamp, ev.Content)
		}
	case taskengine.EventToolCallsDetected:
		for _, tc := range ev.ToolCalls {
			fmt.Printf("[%s] tool call: %s\n", timestamp, tc.Name)
		}
	case taskengine.EventToolExecutionStarted:
		fmt.Printf("[%s] running %s...\n", timestamp, ev.ToolName)
	case taskengine.EventToolExecutionCompleted:
		fmt.Printf("[%s] %s finished\n", timestamp, ev.ToolName)
	case taskengine.EventCompletion:
		fmt.Printf("[%s] done: %s\n", timestamp, ev.Result)
	case taskengine.EventError:
		fmt.Printf("[%s] error: %s\n", timestamp, ev.Message)
	case taskengine.EventAborted:
		fmt.Printf("[%s] aborted: %s\n", timestamp, ev.Message)
	}
}

func aiConfigFromEnv() taskengine.AIConfig {
	return taskengine.AIConfig{
		Provider: envOrDefault("TASKCTL_AI_PROVIDER", "openai"),
		Model:    envOrDefault("TASKCTL_AI_MODEL", "gpt-4o-mini"),
		APIKey:   envOrDefault("TASKCTL_AI_API_KEY", ""),
		BaseURL:  envOrDefault("TASKCTL_AI_BASE_URL", ""),
	}
}
