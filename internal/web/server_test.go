package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/logging"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Load()
	catalog, err := params.NewCatalog(cfg.Presets)
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	sessions := session.NewService(session.NewMemoryRepository(), catalog, logging.Discard())
	s := NewServer(cfg, 0, "127.0.0.1", catalog, sessions, metrics.New())
	t.Cleanup(s.Editors().Stop)
	return s
}

func doRequest(s *Server, method, path, owner string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if owner != "" {
		req.Header.Set(constants.OwnerHeader, owner)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Public(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/api/v1/health", http.StatusOK, `"status"`},
		{"/api/v1/categories", http.StatusOK, `"gummy-bear"`},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/api/v1/nothing-here", http.StatusNotFound, `"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(s, http.MethodGet, tt.path, "", nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %s: %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRoutes_RequireOwner(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/sessions", "/api/v1/editors/abc"} {
		rec := doRequest(s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without owner = %d, want 401", path, rec.Code)
		}
	}
}

func TestRoutes_EditAndSave(t *testing.T) {
	s := newTestServer(t)
	const owner = "owner-1"

	rec := doRequest(s, http.MethodPost, "/api/v1/editors", owner, []byte(`{"category":"lips"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create editor = %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode editor: %v", err)
	}

	entry, err := s.Editors().Get(created.ID, owner)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := entry.Editor.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error: %v", err)
	}

	base := "/api/v1/editors/" + created.ID
	if rec := doRequest(s, http.MethodPut, base+"/parameters/lips-fullness", owner, []byte(`{"value":1.25}`)); rec.Code != http.StatusOK {
		t.Fatalf("set parameter = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(s, http.MethodGet, base+"/mesh", owner, nil); rec.Code != http.StatusOK {
		t.Fatalf("mesh = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(s, http.MethodGet, base, "owner-2", nil); rec.Code != http.StatusForbidden {
		t.Errorf("foreign owner get = %d, want 403", rec.Code)
	}
	rec = doRequest(s, http.MethodPost, base+"/sessions", owner, []byte(`{"name":"fuller"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("save = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, http.MethodGet, "/api/v1/sessions", owner, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"fuller"`) {
		t.Errorf("list sessions = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := doRequest(s, http.MethodDelete, base, owner, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete editor = %d, want 204", rec.Code)
	}
	if s.Editors().Count() != 0 {
		t.Errorf("editors open = %d, want 0", s.Editors().Count())
	}
}
