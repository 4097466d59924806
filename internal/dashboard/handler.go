// Package dashboard serves the browser UI and its JSON/SSE API.
package dashboard

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/kamilpajak/radiolens/internal/auth"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/internal/results"
	"github.com/kamilpajak/radiolens/internal/session"
	"github.com/sirupsen/logrus"
)

//go:embed static
var staticFiles embed.FS

// sessionCookie carries the browser's session id.
const sessionCookie = "radiolens_session"

// Options configures a Handler.
type Options struct {
	Sessions *session.Manager
	// MaxUploadBytes caps the multipart body; 0 means no cap.
	MaxUploadBytes int64
	// Verifier enables bearer-token auth on the API when non-nil.
	Verifier *auth.Verifier
	// CORSOrigin, when set, is sent as Access-Control-Allow-Origin on API
	// responses so a separately hosted front end can call them.
	CORSOrigin string
}

// Handler serves the web dashboard and API endpoints.
type Handler struct {
	mux            *http.ServeMux
	sessions       *session.Manager
	maxUploadBytes int64
	verifier       *auth.Verifier
	corsOrigin     string
}

// NewHandler creates a new web handler with all routes registered.
func NewHandler(opts Options) *Handler {
	h := &Handler{
		mux:            http.NewServeMux(),
		sessions:       opts.Sessions,
		maxUploadBytes: opts.MaxUploadBytes,
		verifier:       opts.Verifier,
		corsOrigin:     opts.CORSOrigin,
	}
	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	staticFS, _ := fs.Sub(staticFiles, "static")

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /{$}", h.withOptionalAuth(h.handleIndex))
	h.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	h.mux.HandleFunc("GET /static/results.css", h.handleResultsCSS)

	h.mux.HandleFunc("POST /api/analyze", h.withAuth(h.handleAnalyze))
	h.mux.HandleFunc("POST /api/reset", h.withAuth(h.handleReset))
	h.mux.HandleFunc("GET /api/state", h.withAuth(h.handleState))
	h.mux.HandleFunc("GET /api/events", h.withAuth(h.handleEvents))
}

func (h *Handler) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	if h.verifier == nil {
		return handler
	}
	return auth.Middleware(h.verifier)(handler).ServeHTTP
}

func (h *Handler) withOptionalAuth(handler http.HandlerFunc) http.HandlerFunc {
	if h.verifier == nil {
		return handler
	}
	return auth.OptionalMiddleware(h.verifier)(handler).ServeHTTP
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	if h.corsOrigin != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Access-Control-Allow-Origin", h.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		// Browsers refuse credentials with a wildcard origin.
		if h.corsOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			rec.WriteHeader(http.StatusNoContent)
			h.logRequest(r, rec, start)
			return
		}
	}

	h.mux.ServeHTTP(rec, r)
	h.logRequest(r, rec, start)
}

func (h *Handler) logRequest(r *http.Request, rec *statusRecorder, start time.Time) {
	logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status":      rec.status,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("HTTP request")
}

// session returns the caller's session, issuing a cookie on first contact.
// Authenticated callers are keyed by token subject instead.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	if sub := auth.Subject(r.Context()); sub != "" {
		return h.sessions.Get("sub:" + sub)
	}

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return h.sessions.Get(c.Value)
	}

	id := h.sessions.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return h.sessions.Get(id)
}

func (h *Handler) handleResultsCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	_, _ = w.Write(results.Stylesheet())
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets SSE responses stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
