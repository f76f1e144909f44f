// Package mcpmanager implements the MCP server manager: a persisted registry
// of configured servers plus lifecycle control (start/stop/restart/test) over
// the in-memory set of active clients (§4.4).
package mcpmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/taskd/taskd/internal/mcpclient"
	"github.com/taskd/taskd/internal/mcptransport"
)

type TransportType string

const (
	TransportStdio     TransportType = "stdio"
	TransportHTTP      TransportType = "http"
	TransportWebSocket TransportType = "websocket"
	// TransportBuiltin marks a server implemented in-process by the daemon;
	// it has no command or URL and is always considered running.
	TransportBuiltin TransportType = "builtin"
	clientName                     = "taskd"
	clientVersion                  = "0.1"
)

// ServerConfig is one entry of the MCP server config file (§6).
type ServerConfig struct {
	Command       string            `json:"command,omitempty"`
	Args          []string          `json:"args,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	URL           string            `json:"url,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Description   string            `json:"description,omitempty"`
	Enabled       bool              `json:"enabled"`
	TransportType TransportType     `json:"transportType"`
}

// Status describes a server's current operational state.
type Status string

const (
	StatusNotConfigured Status = "not_configured"
	StatusStopped       Status = "stopped"
	StatusRunning       Status = "running"
	// StatusBuiltin marks a server hosted in-process by the daemon itself
	// rather than spawned as a subprocess or dialed over HTTP. It has no
	// command/URL to start or stop, so start/stop/restart treat it as
	// already-running no-ops. Reserved for a future in-process server;
	// no config currently produces it.
	StatusBuiltin Status = "builtin"
	StatusError   Status = "error"
)

type StatusReport struct {
	Name        string            `json:"name"`
	Status      Status            `json:"status"`
	Connected   bool              `json:"connected"`
	Initialized bool              `json:"initialized"`
	ServerInfo  *mcpclient.ServerInfo `json:"server_info,omitempty"`
	Config      ServerConfig      `json:"config"`
}

// Timeouts bundles the timing knobs the manager applies when constructing
// transports and clients.
type Timeouts struct {
	RequestTimeout       time.Duration
	StdioShutdownTimeout time.Duration
	HTTPTimeout          time.Duration
}

// Manager owns the persisted server-config map and the in-memory active-client
// set. Lifecycle transitions on a given server are serialized by a per-server
// lock; the overall map of locks is guarded by mu.
type Manager struct {
	configPath string
	timeouts   Timeouts

	mu      sync.RWMutex
	servers map[string]ServerConfig
	active  map[string]*mcpclient.Client
	locks   map[string]*sync.Mutex

	reconcileMu sync.Mutex
	reconcile   func()
}

func New(configPath string, timeouts Timeouts) *Manager {
	return &Manager{
		configPath: configPath,
		timeouts:   timeouts,
		servers:    make(map[string]ServerConfig),
		active:     make(map[string]*mcpclient.Client),
		locks:      make(map[string]*sync.Mutex),
	}
}

// SetReconciler registers the dynamic-tool-bridge callback invoked after any
// successful start/stop/restart (§4.4, §4.8). Decoupled from mcpmanager's
// own imports to avoid a dependency cycle with the tool coordinator.
func (m *Manager) SetReconciler(fn func()) {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()
	m.reconcile = fn
}

func (m *Manager) runReconciler() {
	m.reconcileMu.Lock()
	fn := m.reconcile
	m.reconcileMu.Unlock()
	if fn != nil {
		fn()
	}
}

// Load reads the persisted server-config map from disk. Missing file is not
// an error (treated as an empty registry).
func (m *Manager) Load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("mcpmanager: read config: %w", err)
	}
	var servers map[string]ServerConfig
	if err := json.Unmarshal(data, &servers); err != nil {
		return fmt.Errorf("mcpmanager: parse config: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = servers
	return nil
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("mcpmanager: create config dir: %w", err)
	}
	data, err := json.MarshalIndent(m.servers, "", "  ")
	if err != nil {
		return fmt.Errorf("mcpmanager: encode config: %w", err)
	}
	return os.WriteFile(m.configPath, data, 0o600)
}

// AddOrUpdate atomically inserts or replaces a server's persisted config.
func (m *Manager) AddOrUpdate(name string, cfg ServerConfig) error {
	m.mu.Lock()
	m.servers[name] = cfg
	err := m.save()
	m.mu.Unlock()
	return err
}

// Remove deletes a server's persisted config, stopping it first if active.
func (m *Manager) Remove(ctx context.Context, name string) error {
	if m.isActive(name) {
		if err := m.Stop(ctx, name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	delete(m.servers, name)
	err := m.save()
	m.mu.Unlock()
	return err
}

func (m *Manager) lockFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	return l
}

func (m *Manager) isActive(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[name]
	return ok
}

func (m *Manager) configFor(name string) (ServerConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.servers[name]
	return cfg, ok
}

func (m *Manager) buildTransport(cfg ServerConfig) (mcptransport.Transport, error) {
	switch cfg.TransportType {
	case TransportStdio:
		return mcptransport.NewStdioTransport(mcptransport.StdioConfig{
			Command:         cfg.Command,
			Args:            cfg.Args,
			Env:             cfg.Env,
			ShutdownTimeout: m.timeouts.StdioShutdownTimeout,
		}), nil
	case TransportHTTP:
		return mcptransport.NewHTTPTransport(mcptransport.HTTPConfig{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: m.timeouts.HTTPTimeout,
		}), nil
	case TransportWebSocket:
		return mcptransport.NewWebSocketTransport(mcptransport.WebSocketConfig{
			URL:     cfg.URL,
			Headers: cfg.Headers,
		}), nil
	default:
		return nil, fmt.Errorf("mcpmanager: unknown transport type %q", cfg.TransportType)
	}
}

// Start connects and initializes the named server. Idempotent if already
// active. Does not consult the config's Enabled flag.
func (m *Manager) Start(ctx context.Context, name string) bool {
	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if m.isActive(name) {
		return true
	}

	cfg, ok := m.configFor(name)
	if !ok {
		return false
	}
	if cfg.TransportType == TransportBuiltin {
		return true
	}

	transport, err := m.buildTransport(cfg)
	if err != nil {
		return false
	}

	client := mcpclient.New(transport, m.timeouts.RequestTimeout)
	if err := client.Connect(ctx, clientName, clientVersion); err != nil {
		return false
	}

	m.mu.Lock()
	m.active[name] = client
	m.mu.Unlock()

	m.runReconciler()
	return true
}

// Stop disconnects and removes the named server from the active set.
// Idempotent if already inactive.
func (m *Manager) Stop(ctx context.Context, name string) error {
	lock := m.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if cfg, ok := m.configFor(name); ok && cfg.TransportType == TransportBuiltin {
		return nil
	}

	m.mu.Lock()
	client, ok := m.active[name]
	if ok {
		delete(m.active, name)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	err := client.Disconnect(ctx)
	m.runReconciler()
	return err
}

// Restart stops, waits 500ms, then starts.
func (m *Manager) Restart(ctx context.Context, name string) bool {
	_ = m.Stop(ctx, name)
	time.Sleep(500 * time.Millisecond)
	return m.Start(ctx, name)
}

// StartEnabled starts every configured server whose Enabled flag is true.
// Invoked once on application boot (§4.4 Startup policy).
func (m *Manager) StartEnabled(ctx context.Context) {
	m.mu.RLock()
	names := make([]string, 0, len(m.servers))
	for name, cfg := range m.servers {
		if cfg.Enabled {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()

	for _, name := range names {
		m.Start(ctx, name)
	}
}

// Status reports the current state of the named server.
func (m *Manager) Status(name string) StatusReport {
	cfg, configured := m.configFor(name)
	if !configured {
		return StatusReport{Name: name, Status: StatusNotConfigured}
	}
	if cfg.TransportType == TransportBuiltin {
		return StatusReport{Name: name, Config: cfg, Status: StatusBuiltin, Connected: true, Initialized: true}
	}

	m.mu.RLock()
	client, active := m.active[name]
	m.mu.RUnlock()

	report := StatusReport{Name: name, Config: cfg}
	if !active {
		report.Status = StatusStopped
		return report
	}

	connected := client.IsConnected()
	initialized := client.IsInitialized()
	report.Connected = connected
	report.Initialized = initialized
	if connected && initialized {
		info := client.ServerInfo()
		report.ServerInfo = &info
		report.Status = StatusRunning
	} else {
		report.Status = StatusError
	}
	return report
}

// ListConfigured returns the names of all persisted server configs.
func (m *Manager) ListConfigured() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	return names
}

// ActiveClient returns a read-only reference to the live client for name, if any.
func (m *Manager) ActiveClient(name string) (*mcpclient.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.active[name]
	return c, ok
}

// ActiveNames returns the names of all currently active servers.
func (m *Manager) ActiveNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.active))
	for name := range m.active {
		names = append(names, name)
	}
	return names
}

// Test creates a temporary client from a raw config, initializes it, lists
// tools/resources/prompts, and disconnects without touching the active set.
func (m *Manager) Test(ctx context.Context, cfg ServerConfig) (*StatusReport, []mcpclient.Tool, []mcpclient.Resource, error) {
	transport, err := m.buildTransport(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	client := mcpclient.New(transport, m.timeouts.RequestTimeout)
	if err := client.Connect(ctx, clientName, clientVersion); err != nil {
		return nil, nil, nil, err
	}
	defer client.Disconnect(ctx)

	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	resources, err := client.ListResources(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	info := client.ServerInfo()
	return &StatusReport{
		Status:      StatusRunning,
		Connected:   true,
		Initialized: true,
		ServerInfo:  &info,
		Config:      cfg,
	}, tools, resources, nil
}

// ExecuteToolResult is the uniform success/error envelope for tool calls
// routed through the manager (§4.4 execute_tool).
type ExecuteToolResult struct {
	Success bool
	Content []mcpclient.ContentItem
	IsError bool
	Err     error
}

// ExecuteTool auto-starts the server if inactive, then calls tools/call.
func (m *Manager) ExecuteTool(ctx context.Context, server, tool string, args map[string]any) ExecuteToolResult {
	if !m.isActive(server) {
		if !m.Start(ctx, server) {
			return ExecuteToolResult{Success: false, Err: fmt.Errorf("mcpmanager: server %q is not active and could not be started", server)}
		}
	}

	client, ok := m.ActiveClient(server)
	if !ok {
		return ExecuteToolResult{Success: false, Err: fmt.Errorf("mcpmanager: server %q is not active", server)}
	}

	content, isError, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return ExecuteToolResult{Success: false, Err: err}
	}
	return ExecuteToolResult{Success: !isError, Content: content, IsError: isError}
}

func (m *Manager) ListTools(ctx context.Context, server string) ([]mcpclient.Tool, error) {
	client, ok := m.ActiveClient(server)
	if !ok {
		return nil, fmt.Errorf("mcpmanager: server %q is not active", server)
	}
	return client.ListTools(ctx)
}

func (m *Manager) ListResources(ctx context.Context, server string) ([]mcpclient.Resource, error) {
	client, ok := m.ActiveClient(server)
	if !ok {
		return nil, fmt.Errorf("mcpmanager: server %q is not active", server)
	}
	return client.ListResources(ctx)
}

func (m *Manager) ListPrompts(ctx context.Context, server string) ([]mcpclient.Prompt, error) {
	client, ok := m.ActiveClient(server)
	if !ok {
		return nil, fmt.Errorf("mcpmanager: server %q is not active", server)
	}
	return client.ListPrompts(ctx)
}

func (m *Manager) ReadResource(ctx context.Context, server, uri string) ([]mcpclient.ContentItem, error) {
	client, ok := m.ActiveClient(server)
	if !ok {
		return nil, fmt.Errorf("mcpmanager: server %q is not active", server)
	}
	return client.ReadResource(ctx, uri)
}

func (m *Manager) GetConfig(name string) (ServerConfig, bool) {
	return m.configFor(name)
}
