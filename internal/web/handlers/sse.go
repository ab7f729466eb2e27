package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/kozaktomas/face-sculptor/internal/constants"
	"github.com/kozaktomas/face-sculptor/internal/mesh"
)

// MeshEvent is one server-sent event of an editor stream.
type MeshEvent struct {
	Type string         `json:"type"`
	Mesh *mesh.FlatMesh `json:"mesh,omitempty"`
}

// MeshBroadcaster fans presented meshes out to SSE listeners. It is the
// render target of an editor's render loop.
type MeshBroadcaster struct {
	listeners []chan MeshEvent
	mu        sync.RWMutex
}

// Present implements editor.RenderTarget.
func (b *MeshBroadcaster) Present(s mesh.Snapshot) {
	flat := s.Flat()
	b.SendEvent(MeshEvent{Type: "mesh", Mesh: &flat})
}

// AddListener adds an event listener.
func (b *MeshBroadcaster) AddListener() chan MeshEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan MeshEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *MeshBroadcaster) RemoveListener(ch chan MeshEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *MeshBroadcaster) SendEvent(event MeshEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip. The next frame supersedes this one.
		}
	}
}

// CloseAll sends a closed event and detaches every listener.
func (b *MeshBroadcaster) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, listener := range b.listeners {
		select {
		case listener <- MeshEvent{Type: "closed"}:
		default:
		}
		close(listener)
	}
	b.listeners = nil
}

// setupSSEHeaders sets the event-stream headers. It reports false when the
// writer cannot stream.
func setupSSEHeaders(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return flusher, true
}

// sendSSEEvent writes one event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = w.Write(jsonData)
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
