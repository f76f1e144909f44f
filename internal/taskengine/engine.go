package taskengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/conversation"
	"github.com/taskd/taskd/internal/promptbuilder"
	"github.com/taskd/taskd/internal/provider"
	"github.com/taskd/taskd/internal/secrets"
	"github.com/taskd/taskd/internal/taskhistory"
	"github.com/taskd/taskd/internal/taskmetrics"
	"github.com/taskd/taskd/internal/tools"
)

const (
	defaultMaxIterations          = 999
	defaultMaxConsecutiveMistakes = 3
	completionToolName            = "attempt_completion"
	eventBufferSize               = 16
)

// providerResolver is the narrow slice of *provider.Registry the engine
// depends on, so tests can substitute a fake provider without a live key.
type providerResolver interface {
	Resolve(id, baseURL string) (provider.Provider, string, error)
}

// Engine drives one task's recursive LLM↔tool loop (§4.10). It is stateless
// across tasks: each Execute call owns its own conversation-history and
// task-state instance, matching §5's per-task isolation guarantee.
type Engine struct {
	coordinator   *tools.Coordinator
	promptBuilder *promptbuilder.Builder
	providers     providerResolver
	scrubber      secrets.Scrubber
	logger        *zap.Logger
	metrics       *taskmetrics.Metrics

	maxIterations          int
	maxConsecutiveMistakes int
}

// NewEngine wires the coordinator, prompt builder, and provider registry a
// workspace needs to run tasks. scrubber and logger may be nil. Use
// WithMetrics to attach taskd_* instrumentation; a nil *taskmetrics.Metrics
// is safe and every record call becomes a no-op.
func NewEngine(coordinator *tools.Coordinator, promptBuilder *promptbuilder.Builder, providers providerResolver, scrubber secrets.Scrubber, logger *zap.Logger) *Engine {
	return &Engine{
		coordinator:            coordinator,
		promptBuilder:          promptBuilder,
		providers:              providers,
		scrubber:               scrubber,
		logger:                 logger,
		maxIterations:          defaultMaxIterations,
		maxConsecutiveMistakes: defaultMaxConsecutiveMistakes,
	}
}

// WithMetrics attaches taskd_* metrics recording to the engine and returns it
// for chaining onto NewEngine.
func (e *Engine) WithMetrics(m *taskmetrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Execute starts a task (generating a task id if taskID is empty) and
// returns its event stream plus an abort function the caller can invoke to
// request cancellation at the next iteration boundary (§5). The event
// channel is closed once the task reaches a terminal event.
func (e *Engine) Execute(ctx context.Context, taskID, userInput, repoPath string, aiConfig AIConfig) (string, <-chan Event, func()) {
	if taskID == "" {
		taskID = uuid.NewString()
	}

	state := &taskState{}
	events := make(chan Event, eventBufferSize)

	go e.run(ctx, taskID, userInput, repoPath, aiConfig, state, events)

	return taskID, events, state.Abort
}

func (e *Engine) run(ctx context.Context, taskID, userInput, repoPath string, aiConfig AIConfig, state *taskState, events chan<- Event) {
	defer close(events)

	historyMgr := conversation.NewManager(taskID, repoPath, e.scrubber, e.logger)
	loaded, err := historyMgr.LoadHistory()
	if err != nil && e.logger != nil {
		e.logger.Warn("failed to load conversation history", zap.String("task_id", taskID), zap.Error(err))
	}

	taskIndex := taskhistory.NewManager(repoPath, e.logger)
	if _, err := taskIndex.LoadHistory(); err != nil && e.logger != nil {
		e.logger.Warn("failed to load task history index", zap.Error(err))
	}
	taskIndex.AddOrUpdateTask(taskID, userInput, aiConfig.Provider, aiConfig.Model, repoPath)

	historyMgr.AppendMessage(conversation.RoleUser, fmt.Sprintf("<task>\n%s\n</task>", userInput), nil, nil, "", 0)

	defer e.finalize(historyMgr, taskIndex)

	events <- Event{Type: EventTaskStarted, TaskID: taskID, IsNewTask: !loaded}

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		if ctx.Err() != nil || state.shouldAbort() {
			events <- Event{Type: EventAborted, Iteration: iteration}
			return
		}
		if state.consecutiveMistakes >= e.maxConsecutiveMistakes {
			events <- Event{
				Type:      EventError,
				Iteration: iteration,
				Message:   fmt.Sprintf("reached max consecutive mistakes (%d)", state.consecutiveMistakes),
			}
			return
		}

		done, mistake := e.runIteration(ctx, taskID, repoPath, aiConfig, historyMgr, state, iteration, events)

		outcome := "continued"
		if done {
			outcome = "done"
		} else if mistake {
			outcome = "mistake"
		}
		e.metrics.RecordIteration(ctx, aiConfig.Provider, outcome)

		if mistake {
			state.incrementMistakes()
		}
		if done {
			return
		}
	}
}

// runIteration executes one pass of the loop body (§4.10, steps 2-9),
// reporting whether the task is finished and whether this iteration counts
// as a mistake.
func (e *Engine) runIteration(
	ctx context.Context,
	taskID, repoPath string,
	aiConfig AIConfig,
	historyMgr *conversation.Manager,
	state *taskState,
	iteration int,
	events chan<- Event,
) (done, mistake bool) {
	messages, compressionStats := buildMessages(historyMgr.Messages("", 0), aiConfig.Model)
	e.metrics.RecordCompression(ctx, string(compressionStats.Level))
	e.metrics.RecordTokensEstimated(ctx, aiConfig.Model, compressionStats.CompressedTokens)

	systemPrompt := e.promptBuilder.Build(ctx, repoPath)

	state.incrementAPIRequests()
	events <- Event{Type: EventAPIRequestStarted, Iteration: iteration, MessageCount: len(messages)}

	llm, baseURL, err := e.providers.Resolve(aiConfig.Provider, aiConfig.BaseURL)
	if err != nil {
		events <- Event{Type: EventError, Iteration: iteration, Message: err.Error()}
		return true, true
	}

	req := provider.Request{
		Model:        aiConfig.Model,
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        toolDefinitions(e.coordinator.ListTools()),
		APIKey:       aiConfig.APIKey,
		BaseURL:      baseURL,
		Temperature:  aiConfig.Temperature,
		MaxTokens:    aiConfig.MaxTokens,
	}

	resp, err := llm.ChatWithTools(ctx, req)
	if err != nil {
		events <- Event{Type: EventError, Iteration: iteration, Message: err.Error()}
		return true, true
	}

	events <- Event{Type: EventAPIResponse, Iteration: iteration, Content: resp.Content}

	toolCalls := make([]conversation.ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		params, parseErr := parseArguments(tc.Arguments)
		if parseErr != nil && e.logger != nil {
			e.logger.Warn("failed to parse tool call arguments", zap.String("tool", tc.Name), zap.Error(parseErr))
		}
		toolCalls = append(toolCalls, conversation.ToolCall{
			ID:         tc.ID,
			Name:       tc.Name,
			Parameters: params,
			Timestamp:  time.Now(),
		})
	}

	historyMgr.AppendMessage(conversation.RoleAssistant, resp.Content, toolCalls, nil, aiConfig.Model, resp.Usage.TotalTokens)

	if len(toolCalls) == 0 {
		if resp.Content != "" {
			events <- Event{Type: EventCompletion, Iteration: iteration, Content: resp.Content}
			return true, false
		}
		// Neither tool calls nor content: the model produced nothing
		// actionable. Count it as a mistake and let the loop retry.
		return false, true
	}

	summaries := make([]ToolCallSummary, len(toolCalls))
	for i, tc := range toolCalls {
		summaries[i] = ToolCallSummary{Name: tc.Name, Parameters: tc.Parameters}
	}
	events <- Event{Type: EventToolCallsDetected, Iteration: iteration, ToolCalls: summaries}

	names := make([]string, len(toolCalls))
	results := make([]tools.Result, len(toolCalls))
	completionIndex := -1

	for i, tc := range toolCalls {
		names[i] = tc.Name
		events <- Event{Type: EventToolExecutionStarted, Iteration: iteration, ToolName: tc.Name}

		toolStart := time.Now()
		result := e.coordinator.Execute(ctx, tools.Call{ID: tc.ID, Name: tc.Name, Parameters: tc.Parameters}, tools.Context{
			RepoPath: repoPath,
			TaskID:   taskID,
			AIConfig: aiConfig,
		})
		e.metrics.RecordToolExecution(ctx, tc.Name, time.Since(toolStart).Seconds(), result.Success)
		result = truncateResultData(result)
		results[i] = result

		historyMgr.SetToolResult(tc.ID, map[string]any{
			"success": result.Success,
			"data":    result.Data,
			"error":   result.Error,
		})

		resultCopy := result
		events <- Event{Type: EventToolExecutionCompleted, Iteration: iteration, ToolName: tc.Name, ToolResult: &resultCopy}

		if tc.Name == completionToolName {
			completionIndex = i
		}
	}

	if completionIndex >= 0 {
		resultText := ""
		if data, ok := results[completionIndex].Data.(map[string]any); ok {
			resultText, _ = data["result"].(string)
		}
		events <- Event{Type: EventCompletion, Iteration: iteration, Result: resultText}
		return true, false
	}

	historyMgr.AppendMessage(conversation.RoleUser, formatToolResultsXML(names, results), nil, nil, "", 0)
	return false, false
}

// finalize implements §4.10's finalization rule: save history and update
// the task index regardless of outcome, logging (not propagating) any
// failure so the user-visible response still completes.
func (e *Engine) finalize(historyMgr *conversation.Manager, taskIndex *taskhistory.Manager) {
	if err := historyMgr.SaveHistory(); err != nil && e.logger != nil {
		e.logger.Error("failed to save conversation history", zap.Error(err))
	}

	stats := historyMgr.Stats()
	if item := taskIndex.GetTask(stats.TaskID); item != nil {
		item.TokensIn = stats.TotalTokens
		item.Size = stats.TaskDirSize
	}
	if err := taskIndex.SaveHistory(); err != nil && e.logger != nil {
		e.logger.Error("failed to save task history index", zap.Error(err))
	}
}
