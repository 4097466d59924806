package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/internal/session"
	"github.com/kamilpajak/radiolens/internal/upload"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyze accepts one uploaded image and starts its analysis. The
// response is the session view right after submission, normally loading.
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	var submitErr error
	surface := &upload.Surface{
		Disabled: !sess.View().UploadEnabled(),
		MaxBytes: h.maxUploadBytes,
		OnUpload: func(f *upload.File) {
			submitErr = sess.Submit(r.Context(), f)
		},
	}

	if err := surface.Receive(w, r); err != nil {
		writeError(w, upload.StatusCode(err), err.Error())
		return
	}

	switch {
	case errors.Is(submitErr, session.ErrBusy):
		writeError(w, http.StatusConflict, submitErr.Error())
		return
	case submitErr != nil:
		// The session already holds the user-facing failure.
		logger.WithError(submitErr).Debug("Upload could not be read")
	}

	writeJSON(w, http.StatusAccepted, sess.View())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.View())
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session(w, r).View())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
