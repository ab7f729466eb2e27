package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/influence"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/refimage"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxJSONBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%s: %w", errInvalidRequestBody, err)
	}
	return nil
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, landmark.ErrInsufficientLandmarks):
		return http.StatusUnprocessableEntity
	case errors.Is(err, refimage.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, params.ErrUnknownParameter),
		errors.Is(err, params.ErrUnknownCategory),
		errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, session.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, errEditorNotFound):
		return http.StatusNotFound
	case errors.Is(err, errEditorNotOwner):
		return http.StatusForbidden
	case errors.Is(err, params.ErrIncompleteSnapshot),
		errors.Is(err, params.ErrValidation),
		errors.Is(err, deform.ErrMismatch):
		return http.StatusBadRequest
	case errors.Is(err, influence.ErrUnmappableParameter),
		errors.Is(err, editor.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNotReady):
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// respondEngineError writes err with the status statusFor picks. Internal
// errors are not echoed to the client.
func respondEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		msg = "internal error"
	case errors.Is(err, landmark.ErrInsufficientLandmarks):
		msg = "capture failed, please re-scan: " + msg
	}
	respondError(w, status, msg)
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
