// Taskd is an agentic task-execution daemon: it drives an LLM through a
// read/edit/run loop over a local git repository, exposing progress as an
// HTTP/SSE stream and offloading tools to MCP servers it manages.
//
// Configuration is loaded from environment variables. See internal/config
// for details.
//
// Usage:
//
//	# Start the daemon with defaults
//	taskd
//
//	# Configure via environment
//	TASKD_HTTP_PORT=9090 TASKD_AI_PROVIDER=openai taskd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/config"
	"github.com/taskd/taskd/internal/httpapi"
	"github.com/taskd/taskd/internal/logging"
	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/promptbuilder"
	"github.com/taskd/taskd/internal/provider"
	"github.com/taskd/taskd/internal/secrets"
	"github.com/taskd/taskd/internal/taskengine"
	"github.com/taskd/taskd/internal/taskmetrics"
	"github.com/taskd/taskd/internal/telemetry"
	"github.com/taskd/taskd/internal/tools"
	"github.com/taskd/taskd/internal/tools/builtin"
	"github.com/taskd/taskd/internal/tools/mcpbridge"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  taskd           Start the taskd daemon\n")
			fmt.Fprintf(os.Stderr, "  taskd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		log.Fatalf("taskd error: %v", err)
	}
	log.Println("taskd shutdown complete")
}

func printVersion() {
	fmt.Printf("taskd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires and starts the daemon, blocking until ctx is cancelled.
//
//  1. Loads and validates configuration.
//  2. Initializes the structured logger.
//  3. Builds the tool coordinator, registering built-ins and MCP meta-tools.
//  4. Loads and starts the configured MCP servers, wiring the dynamic bridge.
//  5. Builds the prompt builder, provider registry, and task engine.
//  6. Starts the HTTP/SSE server, blocking until shutdown.
func run(ctx context.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetryConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	logger, err := initLogger(cfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	zapLogger := logger.Underlying()
	zapLogger.Info("starting taskd",
		zap.Int("port", cfg.Server.Port),
		zap.String("service", cfg.Observability.ServiceName),
		zap.String("default_repository_path", cfg.Workspace.DefaultRepositoryPath),
	)

	scrubber, err := secrets.New(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize secret scrubber: %w", err)
	}

	metrics := taskmetrics.New(zapLogger)

	coordinator := tools.New()
	builtin.RegisterDefaults(coordinator, zapLogger)

	mcpMgr := mcpmanager.New(cfg.MCP.ConfigPath, mcpmanager.Timeouts{
		RequestTimeout:       cfg.MCP.RequestTimeout,
		StdioShutdownTimeout: cfg.MCP.StdioShutdownTimeout,
		HTTPTimeout:          cfg.MCP.HTTPTimeout,
	})
	if err := mcpMgr.Load(); err != nil {
		return fmt.Errorf("failed to load MCP server config: %w", err)
	}

	coordinator.Register(mcpbridge.ListMcpServersHandler{Manager: mcpMgr})
	coordinator.Register(mcpbridge.UseMcpToolHandler{Manager: mcpMgr, Metrics: metrics})
	coordinator.Register(mcpbridge.AccessMcpResourceHandler{Manager: mcpMgr, Metrics: metrics})

	bridge := mcpbridge.NewBridge(coordinator, mcpMgr)
	mcpMgr.SetReconciler(bridge.Reconcile)

	mcpMgr.StartEnabled(ctx)
	zapLogger.Info("MCP servers started", zap.Strings("active", mcpMgr.ActiveNames()))

	promptBuilder := promptbuilder.NewBuilder(coordinator, mcpMgr)
	providers := provider.NewRegistry()
	engine := taskengine.NewEngine(coordinator, promptBuilder, providers, scrubber, zapLogger).WithMetrics(metrics)

	srv := httpapi.NewServer(httpapi.Config{
		Engine:          engine,
		MCPManager:      mcpMgr,
		Scrubber:        scrubber,
		DefaultRepoPath: cfg.Workspace.DefaultRepositoryPath,
		ServiceName:     cfg.Observability.ServiceName,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, zapLogger)

	zapLogger.Info("server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port)),
		zap.String("metrics_endpoint", "/metrics"),
	)

	return srv.Start(ctx)
}

// initLogger builds a structured logger from cfg, layering taskd's Server/
// Observability settings onto logging's own default config (sampling,
// redaction, caller info) rather than reconstructing all of it from env vars
// a second time. otelProvider bridges zap records into the OTEL logs
// pipeline when cfg.Observability.EnableTelemetry is set; it may be nil.
func initLogger(cfg *config.Config, otelProvider otellog.LoggerProvider) (*logging.Logger, error) {
	logCfg := logging.NewDefaultConfig()

	level, err := logging.LevelFromString(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Observability.LogLevel, err)
	}
	logCfg.Level = level

	if cfg.Observability.LogFormat != "" {
		logCfg.Format = cfg.Observability.LogFormat
	}
	logCfg.Output.OTEL = cfg.Observability.EnableTelemetry

	return logging.NewLogger(logCfg, otelProvider)
}

// telemetryConfigFrom adapts taskd's own Observability config into
// telemetry.Config, reusing telemetry's own defaults for anything taskd
// doesn't expose a dedicated setting for (sampling, metrics export
// interval, shutdown timeout).
func telemetryConfigFrom(cfg *config.Config) *telemetry.Config {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.Enabled = cfg.Observability.EnableTelemetry
	tcfg.Endpoint = cfg.Observability.OTLPEndpoint
	tcfg.Protocol = cfg.Observability.OTLPProtocol
	tcfg.ServiceName = cfg.Observability.ServiceName
	tcfg.Insecure = cfg.Observability.OTLPInsecure
	tcfg.TLSSkipVerify = cfg.Observability.OTLPTLSSkipVerify
	return tcfg
}
