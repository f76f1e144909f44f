// Package taskmetrics instruments the task-execution loop (internal/
// taskengine), MCP requests, and context compression with the named
// OpenTelemetry metrics SPEC_FULL.md's observability section calls for:
// taskd_task_iterations_total, taskd_tool_execution_seconds,
// taskd_mcp_request_seconds, taskd_context_compression_total, and
// taskd_tokens_estimated_total. Grounded on internal/http.HTTPMetrics'
// meter/instrument shape.
package taskmetrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/taskd/taskd/internal/taskengine"

// Metrics holds every instrument the task loop records against. A nil
// *Metrics is valid and every method is a no-op, so callers that don't wire
// telemetry (e.g. engine tests) can pass nil without guarding every call.
type Metrics struct {
	logger *zap.Logger

	taskIterations     metric.Int64Counter
	toolExecutionSecs  metric.Float64Histogram
	mcpRequestSecs     metric.Float64Histogram
	contextCompression metric.Int64Counter
	tokensEstimated    metric.Int64Counter
}

// New builds the instruments against the process-wide MeterProvider (set by
// telemetry.New via otel.SetMeterProvider; a no-op provider if telemetry is
// disabled, so the counters/histograms are always safe to record into).
func New(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	m := &Metrics{logger: logger}

	var err error
	m.taskIterations, err = meter.Int64Counter(
		"taskd_task_iterations_total",
		metric.WithDescription("Total task-loop iterations, labeled by provider and outcome."),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		logger.Warn("failed to create task iterations counter", zap.Error(err))
	}

	m.toolExecutionSecs, err = meter.Float64Histogram(
		"taskd_tool_execution_seconds",
		metric.WithDescription("Tool handler execution duration, labeled by tool name and success."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create tool execution histogram", zap.Error(err))
	}

	m.mcpRequestSecs, err = meter.Float64Histogram(
		"taskd_mcp_request_seconds",
		metric.WithDescription("MCP server round-trip duration, labeled by server and method."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create mcp request histogram", zap.Error(err))
	}

	m.contextCompression, err = meter.Int64Counter(
		"taskd_context_compression_total",
		metric.WithDescription("Context-compression passes run, labeled by resulting level (none/light/medium/aggressive)."),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		logger.Warn("failed to create context compression counter", zap.Error(err))
	}

	m.tokensEstimated, err = meter.Int64Counter(
		"taskd_tokens_estimated_total",
		metric.WithDescription("Estimated prompt tokens sent to providers, labeled by model."),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		logger.Warn("failed to create tokens estimated counter", zap.Error(err))
	}

	return m
}

// RecordIteration counts one task-loop iteration for provider, tagging
// whether it ended the task (a completion, error, or abort) or continued.
func (m *Metrics) RecordIteration(ctx context.Context, provider string, outcome string) {
	if m == nil || m.taskIterations == nil {
		return
	}
	m.taskIterations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordToolExecution records one tool handler call's duration and outcome.
func (m *Metrics) RecordToolExecution(ctx context.Context, tool string, seconds float64, success bool) {
	if m == nil || m.toolExecutionSecs == nil {
		return
	}
	m.toolExecutionSecs.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))
}

// RecordMCPRequest records one MCP server round-trip's duration.
func (m *Metrics) RecordMCPRequest(ctx context.Context, server, method string, seconds float64, success bool) {
	if m == nil || m.mcpRequestSecs == nil {
		return
	}
	m.mcpRequestSecs.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("server", server),
		attribute.String("method", method),
		attribute.Bool("success", success),
	))
}

// RecordCompression counts one context-compression pass at the level it
// settled on (contextcompress.LevelNone included, so the ratio of
// none-vs-active passes is visible).
func (m *Metrics) RecordCompression(ctx context.Context, level string) {
	if m == nil || m.contextCompression == nil {
		return
	}
	m.contextCompression.Add(ctx, 1, metric.WithAttributes(attribute.String("level", level)))
}

// RecordTokensEstimated adds the token count a single request carried.
func (m *Metrics) RecordTokensEstimated(ctx context.Context, model string, tokens int) {
	if m == nil || m.tokensEstimated == nil || tokens <= 0 {
		return
	}
	m.tokensEstimated.Add(ctx, int64(tokens), metric.WithAttributes(attribute.String("model", model)))
}
