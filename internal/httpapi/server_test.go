package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/mcpmanager"
	"github.com/taskd/taskd/internal/promptbuilder"
	"github.com/taskd/taskd/internal/provider"
	"github.com/taskd/taskd/internal/taskengine"
	"github.com/taskd/taskd/internal/tools"
)

// fakeProvider scripts a single reply so the task engine completes in one
// iteration, mirroring internal/taskengine's own test helper.
type fakeProvider struct {
	resp provider.Response
}

func (f *fakeProvider) Chat(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return &f.resp, nil
}
func (f *fakeProvider) ChatWithTools(ctx context.Context, req provider.Request) (*provider.Response, error) {
	return &f.resp, nil
}
func (f *fakeProvider) TestConnection(ctx context.Context, apiKey, baseURL string) error { return nil }

type fakeResolver struct{ p provider.Provider }

func (r *fakeResolver) Resolve(id, baseURL string) (provider.Provider, string, error) {
	return r.p, "http://fake", nil
}

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	repo := t.TempDir()

	coord := tools.New()
	mgr := mcpmanager.New(repo+"/.ai/mcp.json", mcpmanager.Timeouts{})
	pb := promptbuilder.NewBuilder(coord, mgr)
	fp := &fakeProvider{resp: provider.Response{Content: "done"}}
	engine := taskengine.NewEngine(coord, pb, &fakeResolver{p: fp}, nil, zap.NewNop())

	srv := NewServer(Config{
		Engine:          engine,
		MCPManager:      mgr,
		Scrubber:        nil,
		DefaultRepoPath: repo,
		ServiceName:     "taskd-test",
	}, zap.NewNop())
	return srv, repo
}

func TestHandleHealth(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"ok\"")
}

func TestHandleStartTaskStreamsSSE(t *testing.T) {
	srv, repo := setupTestServer(t)

	body, err := json.Marshal(startTaskRequest{
		RepositoryPath: repo,
		Input:          "say hello",
		AIConfig:       taskengine.AIConfig{Provider: "openai", Model: "gpt-4o-mini"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	assert.Contains(t, rec.Body.String(), "event: task_started")
	assert.Contains(t, rec.Body.String(), "event: completion")
}

func TestHandleStartTaskRejectsEmptyInput(t *testing.T) {
	srv, repo := setupTestServer(t)

	body, _ := json.Marshal(startTaskRequest{RepositoryPath: repo})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListAndGetAndDeleteTask(t *testing.T) {
	srv, repo := setupTestServer(t)

	body, _ := json.Marshal(startTaskRequest{
		RepositoryPath: repo,
		Input:          "do a thing",
		AIConfig:       taskengine.AIConfig{Provider: "openai", Model: "gpt-4o-mini"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/tasks?repository_path="+repo, nil)
	listRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	taskID, _ := items[0]["id"].(string)
	require.NotEmpty(t, taskID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/tasks/"+taskID+"?repository_path="+repo, nil)
	getRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)

	favReq := httptest.NewRequest(http.MethodPost, "/api/tasks/"+taskID+"/favorite?repository_path="+repo, nil)
	favRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(favRec, favReq)
	assert.Equal(t, http.StatusOK, favRec.Code)
	assert.Contains(t, favRec.Body.String(), "\"is_favorited\":true")

	delReq := httptest.NewRequest(http.MethodDelete, "/api/tasks/"+taskID+"?repository_path="+repo, nil)
	delRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(delRec, delReq)
	assert.Equal(t, http.StatusNoContent, delRec.Code)
}

func TestHandleListMCPServersEmpty(t *testing.T) {
	srv, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/mcp/servers", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestHandleAddMCPServer(t *testing.T) {
	srv, _ := setupTestServer(t)

	body, _ := json.Marshal(addMCPServerRequest{
		Name: "local-tool",
		Config: mcpmanager.ServerConfig{
			TransportType: mcpmanager.TransportStdio,
			Command:       "true",
			Enabled:       false,
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/mcp/servers", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/api/mcp/servers", nil)
	listRec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(listRec, listReq)
	assert.Contains(t, listRec.Body.String(), "local-tool")
}
