package taskmetrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestMetricsRecordsAgainstMeterProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	m := New(zap.NewNop())
	ctx := context.Background()

	m.RecordIteration(ctx, "openai", "continued")
	m.RecordToolExecution(ctx, "read_file", 0.01, true)
	m.RecordMCPRequest(ctx, "local-tool", "call_tool", 0.05, true)
	m.RecordCompression(ctx, "none")
	m.RecordTokensEstimated(ctx, "gpt-4o-mini", 1200)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
		}
	}

	for _, name := range []string{
		"taskd_task_iterations_total",
		"taskd_tool_execution_seconds",
		"taskd_mcp_request_seconds",
		"taskd_context_compression_total",
		"taskd_tokens_estimated_total",
	} {
		if !found[name] {
			t.Errorf("expected metric %q to be recorded", name)
		}
	}
}

func TestNilMetricsIsANoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordIteration(ctx, "openai", "done")
	m.RecordToolExecution(ctx, "read_file", 0.01, true)
	m.RecordMCPRequest(ctx, "local-tool", "call_tool", 0.05, true)
	m.RecordCompression(ctx, "none")
	m.RecordTokensEstimated(ctx, "gpt-4o-mini", 1200)
}
