package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/kozaktomas/face-sculptor/internal/web/middleware"
)

const testOwner = "owner-1"

// testEnv wires handlers to an in-memory session store
type testEnv struct {
	catalog  *params.Catalog
	service  *session.Service
	editors  *EditorManager
	handler  *EditorsHandler
	sessions *SessionsHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Load()
	catalog, err := params.NewCatalog(cfg.Presets)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	service := session.NewService(session.NewMemoryRepository(), catalog, logging.Discard())
	editors := NewEditorManager(catalog, cfg.Engine, nil, logging.Discard(), 0)
	t.Cleanup(editors.Stop)

	return &testEnv{
		catalog:  catalog,
		service:  service,
		editors:  editors,
		handler:  NewEditorsHandler(editors, service, nil, logging.Discard(), 256),
		sessions: NewSessionsHandler(service, editor.NewRenderer(catalog, cfg.Engine, nil), nil, logging.Discard()),
	}
}

// openEditor creates an editor for testOwner and waits for its first build
func (env *testEnv) openEditor(t *testing.T, category string) *EditorEntry {
	t.Helper()
	entry, err := env.editors.Create(testOwner, category)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := entry.Editor.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}
	return entry
}

// ownerRequest creates a request on behalf of owner with chi URL parameters
func ownerRequest(method, path string, body io.Reader, owner string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.SetOwnerInContext(req.Context(), owner)
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(data)
}

// parseJSONResponse decodes the recorder body into target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}
