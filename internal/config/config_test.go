package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	originalEnv := saveEnv()
	defer restoreEnv(originalEnv)

	tests := []struct {
		name     string
		env      map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.Port != 9090 {
					t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
				}
				if cfg.Server.ShutdownTimeout != 10*time.Second {
					t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
				}
				if cfg.Observability.EnableTelemetry {
					t.Error("Observability.EnableTelemetry = true, want false (disabled by default)")
				}
				if cfg.Observability.ServiceName != "taskd" {
					t.Errorf("Observability.ServiceName = %q, want taskd", cfg.Observability.ServiceName)
				}
				if cfg.Task.MaxIterations != 999 {
					t.Errorf("Task.MaxIterations = %d, want 999", cfg.Task.MaxIterations)
				}
				if cfg.Task.MaxConsecutiveMistakes != 3 {
					t.Errorf("Task.MaxConsecutiveMistakes = %d, want 3", cfg.Task.MaxConsecutiveMistakes)
				}
				if cfg.MCP.ConfigPath != ".ai/mcp_servers.json" {
					t.Errorf("MCP.ConfigPath = %q, want .ai/mcp_servers.json", cfg.MCP.ConfigPath)
				}
			},
		},
		{
			name: "environment variable overrides",
			env: map[string]string{
				"TASKD_HTTP_PORT":                "8080",
				"TASKD_SHUTDOWN_TIMEOUT":         "5s",
				"OTEL_ENABLE":                    "true",
				"OTEL_SERVICE_NAME":              "test-service",
				"TASKD_MAX_ITERATIONS":           "50",
				"TASKD_MAX_CONSECUTIVE_MISTAKES": "2",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Server.ShutdownTimeout != 5*time.Second {
					t.Errorf("Server.ShutdownTimeout = %v, want 5s", cfg.Server.ShutdownTimeout)
				}
				if !cfg.Observability.EnableTelemetry {
					t.Error("Observability.EnableTelemetry = false, want true")
				}
				if cfg.Observability.ServiceName != "test-service" {
					t.Errorf("Observability.ServiceName = %q, want test-service", cfg.Observability.ServiceName)
				}
				if cfg.Task.MaxIterations != 50 {
					t.Errorf("Task.MaxIterations = %d, want 50", cfg.Task.MaxIterations)
				}
				if cfg.Task.MaxConsecutiveMistakes != 2 {
					t.Errorf("Task.MaxConsecutiveMistakes = %d, want 2", cfg.Task.MaxConsecutiveMistakes)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			cfg := Load()
			if cfg == nil {
				t.Fatal("Load() returned nil")
			}

			tt.validate(t, cfg)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 3},
				Observability: ObservabilityConfig{
					EnableTelemetry: true,
					ServiceName:     "taskd",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid port - too low",
			cfg: &Config{
				Server: ServerConfig{Port: 0, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 3},
			},
			wantErr: true,
		},
		{
			name: "invalid port - too high",
			cfg: &Config{
				Server: ServerConfig{Port: 70000, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 3},
			},
			wantErr: true,
		},
		{
			name: "invalid shutdown timeout",
			cfg: &Config{
				Server: ServerConfig{Port: 8080, ShutdownTimeout: 0},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 3},
			},
			wantErr: true,
		},
		{
			name: "empty service name with telemetry enabled",
			cfg: &Config{
				Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 3},
				Observability: ObservabilityConfig{
					EnableTelemetry: true,
					ServiceName:     "",
				},
			},
			wantErr: true,
		},
		{
			name: "zero max iterations",
			cfg: &Config{
				Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 0, MaxConsecutiveMistakes: 3},
			},
			wantErr: true,
		},
		{
			name: "zero max consecutive mistakes",
			cfg: &Config{
				Server: ServerConfig{Port: 8080, ShutdownTimeout: 10 * time.Second},
				Task:   TaskConfig{MaxIterations: 999, MaxConsecutiveMistakes: 0},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func saveEnv() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		env[e] = os.Getenv(e)
	}
	return env
}

func restoreEnv(env map[string]string) {
	os.Clearenv()
	for k, v := range env {
		os.Setenv(k, v)
	}
}
