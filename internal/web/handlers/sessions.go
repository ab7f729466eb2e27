package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-sculptor/internal/deform"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/refimage"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/kozaktomas/face-sculptor/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// SessionsHandler handles saved session endpoints.
type SessionsHandler struct {
	sessions *session.Service
	renderer *editor.Renderer
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

// NewSessionsHandler creates a new sessions handler. The renderer solves
// saved sessions on the template face for comparisons.
func NewSessionsHandler(sessions *session.Service, renderer *editor.Renderer, m *metrics.Metrics, log *logrus.Entry) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, renderer: renderer, metrics: m, log: log}
}

// SessionResponse is a saved session without the image payload.
type SessionResponse struct {
	session.Metadata
	Values             params.Values     `json:"values"`
	Selections         map[string]string `json:"selections,omitempty"`
	ReferenceImageType string            `json:"referenceImageType,omitempty"`
}

func sessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		Metadata:           s.Metadata(),
		Values:             s.Values,
		Selections:         s.Selections,
		ReferenceImageType: s.ReferenceImageType,
	}
}

// load fetches a session and checks that the request owner may see it.
func (h *SessionsHandler) load(ctx context.Context, id string) (*session.Session, error) {
	s, err := h.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.OwnerRef != middleware.GetOwnerFromContext(ctx) {
		return nil, session.ErrNotOwner
	}
	return s, nil
}

// List returns the owner's sessions, newest first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context(), middleware.GetOwnerFromContext(r.Context()))
	h.metrics.SessionOp("list", err)
	if err != nil {
		h.log.WithError(err).Error("listing sessions failed")
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Get returns one session including its values.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(s))
}

// ReferenceImage serves the stored reference image of a session.
func (h *SessionsHandler) ReferenceImage(w http.ResponseWriter, r *http.Request) {
	s, err := h.load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if len(s.ReferenceImage) == 0 {
		respondError(w, http.StatusNotFound, "session has no reference image")
		return
	}
	w.Header().Set("Content-Type", s.ReferenceImageType)
	w.Header().Set("Content-Length", strconv.Itoa(len(s.ReferenceImage)))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	w.Write(s.ReferenceImage)
}

// Delete removes a session of the request owner.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.sessions.Delete(r.Context(), id, middleware.GetOwnerFromContext(r.Context()))
	h.metrics.SessionOp("delete", err)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	h.log.WithField("session", sanitizeForLog(id)).Info("session deleted")
	w.WriteHeader(http.StatusNoContent)
}

// CompareResponse reports how far apart the meshes of two sessions are.
// ReferenceImageDistance is the Hamming distance of the image hashes when
// both sessions carry a reference image.
type CompareResponse struct {
	From                   string            `json:"from"`
	To                     string            `json:"to"`
	Comparison             deform.Comparison `json:"comparison"`
	ReferenceImageDistance *int              `json:"referenceImageDistance,omitempty"`
	Took                   string            `json:"took"`
}

// Compare solves two sessions on the template face and compares the meshes.
func (h *SessionsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := h.load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	b, err := h.load(r.Context(), chi.URLParam(r, "other"))
	if err != nil {
		respondEngineError(w, err)
		return
	}

	ra, err := h.renderer.Render(r.Context(), nil, a.Snapshot())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	rb, err := h.renderer.Render(r.Context(), nil, b.Snapshot())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	cmp, err := deform.Compare(ra.Snapshot(), rb.Snapshot())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	resp := CompareResponse{From: a.ID, To: b.ID, Comparison: cmp}
	if len(a.ReferenceImage) > 0 && len(b.ReferenceImage) > 0 {
		ha, errA := refimage.HashOf(a.ReferenceImage)
		hb, errB := refimage.HashOf(b.ReferenceImage)
		if errA == nil && errB == nil {
			d := refimage.Distance(ha, hb)
			resp.ReferenceImageDistance = &d
		}
	}
	resp.Took = time.Since(start).Round(time.Microsecond).String()
	respondJSON(w, http.StatusOK, resp)
}
