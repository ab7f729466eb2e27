package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

func saveSession(t *testing.T, env *testEnv, owner, category string, values params.Values) string {
	t.Helper()
	id, err := env.service.Save(context.Background(), session.Session{OwnerRef: owner, Category: category, Values: values})
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	return id
}

func TestSessionsHandler_ListGetDelete(t *testing.T) {
	env := newTestEnv(t)
	first := saveSession(t, env, testOwner, "lips", params.Values{"lips-fullness": 1, "lips-width": 1})
	second := saveSession(t, env, testOwner, "lips", params.Values{"lips-fullness": 1.3, "lips-width": 1})
	saveSession(t, env, "owner-2", "lips", params.Values{"lips-fullness": 1, "lips-width": 1})

	recorder := httptest.NewRecorder()
	env.sessions.List(recorder, ownerRequest(http.MethodGet, "/", nil, testOwner, nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var list []session.Metadata
	parseJSONResponse(t, recorder, &list)
	if len(list) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(list))
	}

	recorder = httptest.NewRecorder()
	env.sessions.Get(recorder, ownerRequest(http.MethodGet, "/", nil, testOwner, map[string]string{"id": second}))
	assertStatusCode(t, recorder, http.StatusOK)
	var got SessionResponse
	parseJSONResponse(t, recorder, &got)
	if got.ID != second || got.Values["lips-fullness"] != 1.3 {
		t.Errorf("session = %+v", got)
	}

	recorder = httptest.NewRecorder()
	env.sessions.Get(recorder, ownerRequest(http.MethodGet, "/", nil, "owner-2", map[string]string{"id": second}))
	assertStatusCode(t, recorder, http.StatusForbidden)

	recorder = httptest.NewRecorder()
	env.sessions.Delete(recorder, ownerRequest(http.MethodDelete, "/", nil, "owner-2", map[string]string{"id": first}))
	assertStatusCode(t, recorder, http.StatusForbidden)

	recorder = httptest.NewRecorder()
	env.sessions.Delete(recorder, ownerRequest(http.MethodDelete, "/", nil, testOwner, map[string]string{"id": first}))
	assertStatusCode(t, recorder, http.StatusNoContent)

	recorder = httptest.NewRecorder()
	env.sessions.Get(recorder, ownerRequest(http.MethodGet, "/", nil, testOwner, map[string]string{"id": first}))
	assertStatusCode(t, recorder, http.StatusNotFound)

	recorder = httptest.NewRecorder()
	env.sessions.ReferenceImage(recorder, ownerRequest(http.MethodGet, "/", nil, testOwner, map[string]string{"id": second}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestSessionsHandler_Compare(t *testing.T) {
	env := newTestEnv(t)
	base := saveSession(t, env, testOwner, "nose", params.Values{"nose-size": 1, "nose-slope": 0, "nose-bridge": 1})
	edited := saveSession(t, env, testOwner, "nose", params.Values{"nose-size": 1.5, "nose-slope": 0, "nose-bridge": 1})
	same := saveSession(t, env, testOwner, "nose", params.Values{"nose-size": 1, "nose-slope": 0, "nose-bridge": 1})
	torso := saveSession(t, env, testOwner, "round", params.Values{"implant-size": 350, "implant-projection": 1.5})

	tests := []struct {
		name          string
		from, to      string
		wantStatus    int
		wantIdentical bool
	}{
		{"different edits", base, edited, http.StatusOK, false},
		{"same values", base, same, http.StatusOK, true},
		{"different models", base, torso, http.StatusBadRequest, false},
		{"unknown session", base, "nope", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			env.sessions.Compare(recorder, ownerRequest(http.MethodGet, "/", nil, testOwner, map[string]string{"id": tt.from, "other": tt.to}))
			assertStatusCode(t, recorder, tt.wantStatus)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp CompareResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Comparison.Identical() != tt.wantIdentical {
				t.Errorf("identical = %v, want %v (%+v)", resp.Comparison.Identical(), tt.wantIdentical, resp.Comparison)
			}
			if resp.Comparison.VertexCount != 1000 {
				t.Errorf("vertex count = %d, want 1000", resp.Comparison.VertexCount)
			}
		})
	}
}
