// Package server serves a single rendered page from a temporary directory so
// a headless browser can load it over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kamilpajak/radiolens/internal/logger"
)

// Server serves one directory on a random loopback port.
type Server struct {
	listener net.Listener
	server   *http.Server
	dir      string
}

// Start writes content to filename in a fresh temp dir and serves it.
func Start(content []byte, filename string) (*Server, error) {
	dir, err := os.MkdirTemp("", "radiolens-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to find port: %w", err)
	}

	srv := &Server{
		listener: listener,
		dir:      dir,
		server: &http.Server{
			Handler:           http.FileServer(http.Dir(dir)),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	go func() {
		if err := srv.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("Page server stopped")
		}
	}()

	return srv, nil
}

// URL returns the address of filename on this server.
func (s *Server) URL(filename string) string {
	return fmt.Sprintf("http://%s/%s", s.listener.Addr().String(), filename)
}

// Stop shuts down the server and removes the temp dir.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
	os.RemoveAll(s.dir)
}
