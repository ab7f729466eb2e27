package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/editor"
	"github.com/kozaktomas/face-sculptor/internal/landmark"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
	"github.com/kozaktomas/face-sculptor/internal/metrics"
	"github.com/kozaktomas/face-sculptor/internal/params"
	"github.com/kozaktomas/face-sculptor/internal/refimage"
	"github.com/kozaktomas/face-sculptor/internal/session"
	"github.com/kozaktomas/face-sculptor/internal/web/middleware"
	"github.com/sirupsen/logrus"
)

// EditorsHandler handles editing surface endpoints.
type EditorsHandler struct {
	editors      *EditorManager
	sessions     *session.Service
	metrics      *metrics.Metrics
	log          *logrus.Entry
	maxImageSize int
}

// NewEditorsHandler creates a new editors handler.
func NewEditorsHandler(editors *EditorManager, sessions *session.Service, m *metrics.Metrics, log *logrus.Entry, maxImageSize int) *EditorsHandler {
	return &EditorsHandler{
		editors:      editors,
		sessions:     sessions,
		metrics:      m,
		log:          log,
		maxImageSize: maxImageSize,
	}
}

// EditorResponse describes the state of one editor.
type EditorResponse struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Model      string            `json:"model"`
	Values     params.Values     `json:"values"`
	Selections map[string]string `json:"selections"`
	Ready      bool              `json:"ready"`
	Captured   bool              `json:"captured"`
	CapturedAt *time.Time        `json:"capturedAt,omitempty"`
}

func editorResponse(ed *editor.Editor) EditorResponse {
	state := ed.Registry().State()
	resp := EditorResponse{
		ID:         ed.ID(),
		Category:   state.Category,
		Model:      state.Model,
		Values:     state.Values,
		Selections: ed.Registry().Selections(),
		Ready:      ed.Ready(),
	}
	if c := ed.Capture(); c != nil {
		at := c.CapturedAt()
		resp.Captured = true
		resp.CapturedAt = &at
	}
	return resp
}

// entry resolves the {id} URL parameter for the request owner.
func (h *EditorsHandler) entry(w http.ResponseWriter, r *http.Request) (*EditorEntry, bool) {
	entry, err := h.editors.Get(chi.URLParam(r, "id"), middleware.GetOwnerFromContext(r.Context()))
	if err != nil {
		respondEngineError(w, err)
		return nil, false
	}
	return entry, true
}

type createEditorRequest struct {
	Category string `json:"category"`
}

// Create opens a new editor.
func (h *EditorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEditorRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	entry, err := h.editors.Create(middleware.GetOwnerFromContext(r.Context()), req.Category)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, editorResponse(entry.Editor))
}

// Get returns the editor state.
func (h *EditorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, editorResponse(entry.Editor))
}

// Delete closes an editor.
func (h *EditorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.editors.Delete(chi.URLParam(r, "id"), middleware.GetOwnerFromContext(r.Context())); err != nil {
		respondEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CaptureResponse describes a committed scan.
type CaptureResponse struct {
	Landmarks   int       `json:"landmarks"`
	Interocular float64   `json:"interocular"`
	CapturedAt  time.Time `json:"capturedAt"`
}

// Landmarks commits the user-confirmed landmark set of a finished scan.
func (h *EditorsHandler) Landmarks(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	set, err := landmark.Decode(http.MaxBytesReader(w, r.Body, constants.MaxJSONBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	capture, err := entry.Editor.Commit(set)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CaptureResponse{
		Landmarks:   len(set),
		Interocular: capture.Frame().Interocular(),
		CapturedAt:  capture.CapturedAt(),
	})
}

type selectCategoryRequest struct {
	Category string `json:"category"`
}

// SelectCategory switches the active category.
func (h *EditorsHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req selectCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := entry.Editor.SelectCategory(req.Category); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, editorResponse(entry.Editor))
}

type setParameterRequest struct {
	Value *float64 `json:"value"`
}

// ParameterResponse reports the stored value after clamping and stepping.
type ParameterResponse struct {
	ID    string  `json:"id"`
	Value float64 `json:"value"`
}

// SetParameter sets one parameter of the active category.
func (h *EditorsHandler) SetParameter(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req setParameterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Value == nil {
		respondError(w, http.StatusBadRequest, "value is required")
		return
	}

	id := chi.URLParam(r, "param")
	stored, err := entry.Editor.SetValue(id, *req.Value)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ParameterResponse{ID: id, Value: stored})
}

// Reset returns the active category to its defaults.
func (h *EditorsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	entry.Editor.Registry().Reset()
	respondJSON(w, http.StatusOK, editorResponse(entry.Editor))
}

// GetSnapshot returns the active category and all of its values.
func (h *EditorsHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, entry.Editor.Snapshot())
}

// PutSnapshot replaces all current values at once.
func (h *EditorsHandler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	var snap params.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := entry.Editor.LoadSnapshot(snap); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry.Editor.Snapshot())
}

// MeshResponse carries the current mesh. While the influence map is being
// built Ready is false and Mesh is the last valid mesh, if any.
type MeshResponse struct {
	Ready bool           `json:"ready"`
	Mesh  *mesh.FlatMesh `json:"mesh,omitempty"`
}

// Mesh returns the current deformed mesh.
func (h *EditorsHandler) Mesh(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	snap, err := entry.Editor.Tick()
	if err != nil && !errors.Is(err, editor.ErrNotReady) {
		respondEngineError(w, err)
		return
	}
	resp := MeshResponse{Ready: err == nil}
	if snap != nil {
		flat := snap.Flat()
		resp.Mesh = &flat
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusAccepted
	}
	respondJSON(w, status, resp)
}

// Events streams every mesh the render loop presents.
func (h *EditorsHandler) Events(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	flusher, ok := setupSSEHeaders(w)
	if !ok {
		return
	}

	eventCh := entry.Mesh.AddListener()
	defer entry.Mesh.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", editorResponse(entry.Editor))
	if snap, _ := entry.Editor.Tick(); snap != nil {
		flat := snap.Flat()
		sendSSEEvent(w, flusher, "mesh", MeshEvent{Type: "mesh", Mesh: &flat})
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			entry.touch()
			sendSSEEvent(w, flusher, event.Type, event)
			if event.Type == "closed" {
				return
			}
		}
	}
}

type saveSessionRequest struct {
	Name string `json:"name"`
}

// SaveResponse returns the id of a stored session.
type SaveResponse struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId,omitempty"`
}

// Save stores the current values as a new session. The body is either JSON
// ({"name": ...}) or a multipart form with a name field and an optional
// referenceImage file.
func (h *EditorsHandler) Save(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}

	draft := entry.Editor.Draft()
	draft.OwnerRef = entry.Owner

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
			return
		}
		draft.Name = r.FormValue("name")
		if file, _, err := r.FormFile("referenceImage"); err == nil {
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				respondError(w, http.StatusBadRequest, "failed to read reference image")
				return
			}
			img, err := refimage.Normalize(data, h.maxImageSize)
			if err != nil {
				respondEngineError(w, err)
				return
			}
			draft.ReferenceImage = img.Data
			draft.ReferenceImageType = refimage.ContentType
		}
	} else if r.ContentLength != 0 {
		var req saveSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		draft.Name = req.Name
	}

	id, err := h.sessions.Save(r.Context(), draft)
	h.metrics.SessionOp("save", err)
	if err != nil {
		h.log.WithError(err).Warn("saving session failed")
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, SaveResponse{ID: id, ParentID: draft.ParentID})
}

type loadSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// LoadResponse reports what was loaded. Notice is set when the saved values
// no longer fit and category defaults were loaded instead.
type LoadResponse struct {
	Notice   string          `json:"notice,omitempty"`
	Snapshot params.Snapshot `json:"snapshot"`
}

// Load replaces the editor values with a saved session for further editing.
func (h *EditorsHandler) Load(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	var req loadSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.sessions.Load(r.Context(), req.SessionID)
	h.metrics.SessionOp("load", err)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if s.OwnerRef != entry.Owner {
		respondEngineError(w, session.ErrNotOwner)
		return
	}

	notice, err := entry.Editor.LoadSession(s)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, LoadResponse{Notice: notice, Snapshot: entry.Editor.Snapshot()})
}
