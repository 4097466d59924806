// Package upload receives a single image file from the browser, either from
// the file picker or from a drag-and-drop, and hands it to a callback.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// FieldName is the multipart field both the picker and the drop target use.
const FieldName = "file"

// Hint is informational text shown next to the drop target. The size it
// mentions is not enforced unless MaxBytes is set.
const Hint = "PNG, JPG, WEBP up to 10MB"

// DefaultAccept lists the picker's advisory type filter.
var DefaultAccept = []string{"image/png", "image/jpeg", "image/webp"}

// maxMemory is how much of a multipart body is kept in memory before the
// rest spills to temporary files.
const maxMemory = 32 << 20

var (
	ErrDisabled = errors.New("upload surface is disabled")
	ErrNoFile   = errors.New("no file uploaded")
	ErrTooLarge = errors.New("upload exceeds size limit")
)

// File is one uploaded file, passed through exactly as received.
type File struct {
	header *multipart.FileHeader
}

// Name returns the client-side file name.
func (f *File) Name() string { return f.header.Filename }

// Type returns the MIME type declared by the browser. It is not verified.
func (f *File) Type() string { return f.header.Header.Get("Content-Type") }

// Size returns the declared size in bytes.
func (f *File) Size() int64 { return f.header.Size }

// Open opens the file content. It is only valid while the request is being
// served.
func (f *File) Open() (io.ReadCloser, error) { return f.header.Open() }

// Surface is the upload entry point for one request.
type Surface struct {
	// Disabled suppresses both the picker and the drop target.
	Disabled bool
	// Accept is rendered into the picker's accept attribute. It is advisory:
	// files of other types are passed through uninspected.
	Accept []string
	// MaxBytes caps the request body when positive.
	MaxBytes int64
	// OnUpload is called once per received file.
	OnUpload func(*File)
}

// Receive extracts the first file of the request and invokes OnUpload with it.
func (s *Surface) Receive(w http.ResponseWriter, r *http.Request) error {
	if s.Disabled {
		return ErrDisabled
	}

	if s.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxBytes)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			return ErrTooLarge
		}
		return fmt.Errorf("failed to parse form: %w", err)
	}

	headers := r.MultipartForm.File[FieldName]
	if len(headers) == 0 {
		return ErrNoFile
	}

	if s.OnUpload != nil {
		s.OnUpload(&File{header: headers[0]})
	}
	return nil
}

// View is what the page template needs to draw the drop target.
type View struct {
	Accept   string
	Disabled bool
	Hint     string
	Field    string
}

// View returns the template data for this surface.
func (s *Surface) View() View {
	accept := s.Accept
	if accept == nil {
		accept = DefaultAccept
	}
	return View{
		Accept:   strings.Join(accept, ", "),
		Disabled: s.Disabled,
		Hint:     Hint,
		Field:    FieldName,
	}
}

// StatusCode maps a Receive error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrDisabled):
		return http.StatusConflict
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}
