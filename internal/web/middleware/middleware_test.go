package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-sculptor/internal/constants"
)

func TestRequireOwner(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantOwner  string
	}{
		{"present", "user-42", http.StatusOK, "user-42"},
		{"trimmed", "  user-42  ", http.StatusOK, "user-42"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"blank", "   ", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner string
			handler := RequireOwner()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotOwner = GetOwnerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			if tt.header != "" {
				req.Header.Set(constants.OwnerHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotOwner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", gotOwner, tt.wantOwner)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		origin    string
		method    string
		wantAllow string
		wantCode  int
	}{
		{"https://app.example.com", http.MethodGet, "https://app.example.com", http.StatusNoContent},
		{"http://localhost:5173", http.MethodGet, "http://localhost:5173", http.StatusNoContent},
		{"https://evil.example.com", http.MethodGet, "", http.StatusNoContent},
		{"https://app.example.com", http.MethodOptions, "https://app.example.com", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/api/v1/categories", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("%s %s: Allow-Origin = %q, want %q", tt.method, tt.origin, got, tt.wantAllow)
		}
		if rec.Code != tt.wantCode {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.origin, rec.Code, tt.wantCode)
		}
	}
}
