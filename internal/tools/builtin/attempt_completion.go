package builtin

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/tools"
)

// AttemptCompletionHandler implements attempt_completion (§4.6). It is
// terminal: the task engine treats its execution as the stop condition.
type AttemptCompletionHandler struct {
	Logger *zap.Logger
}

func (AttemptCompletionHandler) Name() string { return "attempt_completion" }

func (AttemptCompletionHandler) Spec() tools.Spec {
	return tools.Spec{
		Name: "attempt_completion",
		Description: "Signal that the task is complete and present the final result. " +
			"Only call this after every prior tool use has succeeded and every requested " +
			"task is actually done — calling it early causes the task to fail.",
		Category: tools.CategoryCompletion,
		Parameters: []tools.ParamSpec{
			{Name: "result", Type: tools.TypeString, Required: true},
			{Name: "command", Type: tools.TypeString, Default: ""},
		},
	}
}

func (h AttemptCompletionHandler) Validate(raw map[string]any) (map[string]any, error) {
	return tools.Validate(h.Spec(), raw)
}

func (h AttemptCompletionHandler) Execute(ctx context.Context, params map[string]any, tc tools.Context) (any, error) {
	result, _ := params["result"].(string)
	command, _ := params["command"].(string)

	if h.Logger != nil {
		h.Logger.Info("task marked complete", zap.String("task_id", tc.TaskID))
	}

	out := map[string]any{
		"type":    "completion",
		"success": true,
		"result":  result,
	}
	if command != "" {
		out["suggested_command"] = command
	}
	return out, nil
}
