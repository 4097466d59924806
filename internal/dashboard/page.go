package dashboard

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/kamilpajak/radiolens/internal/auth"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/internal/results"
	"github.com/kamilpajak/radiolens/internal/session"
	"github.com/kamilpajak/radiolens/internal/upload"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData feeds templates/index.html.
type pageData struct {
	View        session.View
	Upload      upload.View
	Results     template.HTML
	AuthEnabled bool
}

// handleIndex renders the whole page, or only its main section when
// ?partial=1 is set so the page script can swap it in after a state change.
// With auth enabled a request without a token gets an idle shell, and the
// page script loads the caller's state with its token.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var view session.View
	if h.verifier == nil || auth.Subject(r.Context()) != "" {
		view = h.session(w, r).View()
	}

	data := pageData{
		View:        view,
		Upload:      (&upload.Surface{Disabled: !view.UploadEnabled()}).View(),
		AuthEnabled: h.verifier != nil,
	}

	if view.HasResults() {
		var buf bytes.Buffer
		if err := results.Render(&buf, results.Build(view.Result, view.ImagePreview)); err != nil {
			logger.WithError(err).Error("Failed to render results")
			http.Error(w, "failed to render results", http.StatusInternalServerError)
			return
		}
		data.Results = template.HTML(buf.String())
	}

	name := "page"
	if r.URL.Query().Get("partial") == "1" {
		name = "main"
	}

	var out bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&out, name, data); err != nil {
		logger.WithError(err).Error("Failed to render page")
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = out.WriteTo(w)
}
