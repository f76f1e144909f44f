// Package config provides configuration loading for taskd.
//
// Configuration is loaded from environment variables with sensible defaults.
// This package supports server, task-engine, MCP, observability, and
// workspace settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"os"
)

// Config holds the complete taskd configuration.
type Config struct {
	Server        ServerConfig
	Task          TaskConfig
	MCP           MCPConfig
	Observability ObservabilityConfig
	Workspace     WorkspaceConfig
	AI            AIConfig
}

// ServerConfig holds HTTP/SSE server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// TaskConfig holds task-engine defaults.
type TaskConfig struct {
	MaxIterations          int     `koanf:"max_iterations"`
	MaxConsecutiveMistakes int     `koanf:"max_consecutive_mistakes"`
	DefaultMaxTokens       int     `koanf:"default_max_tokens"`
	DefaultTemperature     float64 `koanf:"default_temperature"`
}

// MCPConfig holds MCP client/manager configuration.
type MCPConfig struct {
	ConfigPath           string        `koanf:"config_path"`
	RequestTimeout       time.Duration `koanf:"request_timeout"`
	StdioShutdownTimeout time.Duration `koanf:"stdio_shutdown_timeout"`
	HTTPTimeout          time.Duration `koanf:"http_timeout"`
}

// ObservabilityConfig holds OpenTelemetry/logging configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`
	OTLPProtocol      string `koanf:"otlp_protocol"`
	OTLPInsecure      bool   `koanf:"otlp_insecure"`
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"`
	LogLevel          string `koanf:"log_level"`
	LogFormat         string `koanf:"log_format"`
}

// WorkspaceConfig holds defaults for the repository a task operates against.
type WorkspaceConfig struct {
	DefaultRepositoryPath string `koanf:"default_repository_path"`
}

// AIConfig holds default LLM provider settings, overridable per task request.
type AIConfig struct {
	Provider    string `koanf:"provider"`
	Model       string `koanf:"model"`
	APIKey      Secret `koanf:"api_key"`
	BaseURL     string `koanf:"base_url"`
	Temperature float64
	MaxTokens   int
}

// Load loads configuration from environment variables with defaults.
//
// All environment variables:
//
// Server:
//   - TASKD_HTTP_PORT: HTTP server port (default: 9090)
//   - TASKD_SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//
// Task engine:
//   - TASKD_MAX_ITERATIONS: Bound on tool-use loop iterations (default: 999)
//   - TASKD_MAX_CONSECUTIVE_MISTAKES: Consecutive-mistake abort threshold (default: 3)
//   - TASKD_DEFAULT_MAX_TOKENS: Default LLM max_tokens (default: 4096)
//   - TASKD_DEFAULT_TEMPERATURE: Default LLM temperature (default: 0.2)
//
// MCP:
//   - TASKD_MCP_CONFIG_PATH: Path to MCP server config file (default: .ai/mcp_servers.json)
//   - TASKD_MCP_REQUEST_TIMEOUT: Per tools/call timeout (default: 60s)
//   - TASKD_MCP_STDIO_SHUTDOWN_TIMEOUT: Stdio server graceful-stop timeout (default: 5s)
//   - TASKD_MCP_HTTP_TIMEOUT: HTTP MCP transport timeout (default: 30s)
//
// Observability:
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false)
//   - OTEL_SERVICE_NAME: Service name for traces (default: taskd)
//   - TASKD_LOG_LEVEL: zap level, supports "trace" (default: info)
//   - TASKD_LOG_FORMAT: "json" or "console" (default: json)
//
// Workspace:
//   - TASKD_DEFAULT_REPOSITORY_PATH: Fallback repo path when a request omits one.
//
// AI provider:
//   - TASKD_AI_PROVIDER, TASKD_AI_MODEL, TASKD_AI_API_KEY, TASKD_AI_BASE_URL
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvInt("TASKD_HTTP_PORT", 9090),
			ShutdownTimeout: getEnvDuration("TASKD_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Task: TaskConfig{
			MaxIterations:          getEnvInt("TASKD_MAX_ITERATIONS", 999),
			MaxConsecutiveMistakes: getEnvInt("TASKD_MAX_CONSECUTIVE_MISTAKES", 3),
			DefaultMaxTokens:       getEnvInt("TASKD_DEFAULT_MAX_TOKENS", 4096),
			DefaultTemperature:     getEnvFloat("TASKD_DEFAULT_TEMPERATURE", 0.2),
		},
		MCP: MCPConfig{
			ConfigPath:           getEnvString("TASKD_MCP_CONFIG_PATH", ".ai/mcp_servers.json"),
			RequestTimeout:       getEnvDuration("TASKD_MCP_REQUEST_TIMEOUT", 60*time.Second),
			StdioShutdownTimeout: getEnvDuration("TASKD_MCP_STDIO_SHUTDOWN_TIMEOUT", 5*time.Second),
			HTTPTimeout:          getEnvDuration("TASKD_MCP_HTTP_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "taskd"),
			OTLPEndpoint:    getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OTLPProtocol:    getEnvString("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			LogLevel:        getEnvString("TASKD_LOG_LEVEL", "info"),
			LogFormat:       getEnvString("TASKD_LOG_FORMAT", "json"),
		},
		Workspace: WorkspaceConfig{
			DefaultRepositoryPath: getEnvString("TASKD_DEFAULT_REPOSITORY_PATH", "."),
		},
		AI: AIConfig{
			Provider:    getEnvString("TASKD_AI_PROVIDER", "openai"),
			Model:       getEnvString("TASKD_AI_MODEL", "gpt-4o"),
			APIKey:      Secret(getEnvString("TASKD_AI_API_KEY", "")),
			BaseURL:     getEnvString("TASKD_AI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvFloat("TASKD_DEFAULT_TEMPERATURE", 0.2),
			MaxTokens:   getEnvInt("TASKD_DEFAULT_MAX_TOKENS", 4096),
		},
	}

	return cfg
}

// Validate checks invariants across the configuration. Returns an error if:
//   - Server port is out of range
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - Task engine bounds are non-positive
//   - Workspace/MCP config path contains a path-traversal sequence
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	if c.Task.MaxIterations <= 0 {
		return errors.New("max iterations must be positive")
	}

	if c.Task.MaxConsecutiveMistakes <= 0 {
		return errors.New("max consecutive mistakes must be positive")
	}

	if err := validatePath(c.Workspace.DefaultRepositoryPath); err != nil {
		return fmt.Errorf("invalid TASKD_DEFAULT_REPOSITORY_PATH: %w", err)
	}

	if err := validatePath(c.MCP.ConfigPath); err != nil {
		return fmt.Errorf("invalid TASKD_MCP_CONFIG_PATH: %w", err)
	}

	if c.AI.BaseURL != "" {
		if err := validateURL(c.AI.BaseURL); err != nil {
			return fmt.Errorf("invalid TASKD_AI_BASE_URL: %w", err)
		}
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// validateHostname checks if a hostname is safe (no command injection attempts).
// Uses positive validation with net.ParseIP for IP addresses and regexp for hostnames.
func validateHostname(host string) error {
	if host == "" {
		return nil
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}

	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validatePath checks if a path is safe (no path traversal).
func validatePath(path string) error {
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
