package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kamilpajak/radiolens/internal/session"
)

// SSEEmitter writes session views as Server-Sent Events.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter creates an SSEEmitter for the given ResponseWriter.
// Returns nil if the writer does not support flushing.
func NewSSEEmitter(w http.ResponseWriter) *SSEEmitter {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	return &SSEEmitter{w: w, flusher: f}
}

// Emit writes a view as an SSE data line and flushes.
func (e *SSEEmitter) Emit(v session.View) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(e.w, "data: %s\n\n", data)
	e.flusher.Flush()
}

// handleEvents streams the caller's session view until the client goes away.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	emitter := NewSSEEmitter(w)
	if emitter == nil {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	views, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	for {
		select {
		case v := <-views:
			emitter.Emit(v)
		case <-r.Context().Done():
			return
		}
	}
}
