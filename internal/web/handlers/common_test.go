package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/refimage"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{landmark.ErrInsufficientLandmarks, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrapped: %w", params.ErrUnknownParameter), http.StatusNotFound},
		{params.ErrUnknownCategory, http.StatusNotFound},
		{session.ErrNotFound, http.StatusNotFound},
		{errEditorNotFound, http.StatusNotFound},
		{session.ErrNotOwner, http.StatusForbidden},
		{errEditorNotOwner, http.StatusForbidden},
		{session.ErrDuplicateID, http.StatusConflict},
		{params.ErrIncompleteSnapshot, http.StatusBadRequest},
		{session.ErrValidation, http.StatusBadRequest},
		{deform.ErrMismatch, http.StatusBadRequest},
		{refimage.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{editor.ErrNotReady, http.StatusAccepted},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRespondEngineError_HidesInternalErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	respondEngineError(recorder, errors.New("pq: password authentication failed"))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	var body map[string]string
	parseJSONResponse(t, recorder, &body)
	if body["error"] != "internal error" {
		t.Errorf("error = %q, want internal error", body["error"])
	}
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")
}
