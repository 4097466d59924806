package main

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// localFile is an image on disk submitted from the command line.
type localFile struct {
	path     string
	mimeType string
}

func newLocalFile(path, mimeType string) *localFile {
	return &localFile{path: path, mimeType: mimeType}
}

func (f *localFile) Name() string { return filepath.Base(f.path) }

func (f *localFile) Open() (io.ReadCloser, error) { return os.Open(f.path) }

// Type returns the --mime override, else the type implied by the file
// extension, else a guess from the first bytes.
func (f *localFile) Type() string {
	if f.mimeType != "" {
		return f.mimeType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.path))); t != "" {
		if mt, _, err := mime.ParseMediaType(t); err == nil {
			return mt
		}
		return t
	}

	file, err := os.Open(f.path)
	if err != nil {
		return ""
	}
	defer file.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(file, head)
	if n == 0 {
		return ""
	}
	return http.DetectContentType(head[:n])
}
