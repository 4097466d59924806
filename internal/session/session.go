// Package session drives one analysis at a time for one user: it reads the
// uploaded file, calls the analyzer and publishes the resulting state.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/kamilpajak/radiolens/internal/llm"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/pkg/models"
	"github.com/sirupsen/logrus"
)

// User-facing failure messages.
const (
	MessageFileRead  = "Failed to read the selected file."
	MessageEmptyData = "Failed to read image data."
)

var (
	// ErrBusy is returned by Submit when the upload surface is not shown.
	ErrBusy = errors.New("an analysis is already in progress or displayed")
	// ErrFileRead means the submitted file could not be opened or read.
	ErrFileRead = errors.New("failed to read file")
	// ErrEmptyImage means the submitted file had no content.
	ErrEmptyImage = errors.New("empty image data")
)

// Analyzer is the remote analysis call. *llm.Client satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, mimeType string) (*models.AnalysisResult, error)
}

// Source is a submitted file. *upload.File satisfies it.
type Source interface {
	Name() string
	Type() string
	Open() (io.ReadCloser, error)
}

// Session holds the state of one user's analysis. All transitions happen
// under mu; completions carry the token they were started with and are
// dropped once the token has moved on.
type Session struct {
	analyzer Analyzer

	mu     sync.Mutex
	state  State
	token  uint64
	cancel context.CancelFunc
	subs   map[chan View]struct{}
}

// New creates an idle session.
func New(analyzer Analyzer) *Session {
	return &Session{
		analyzer: analyzer,
		state:    Idle{},
		subs:     make(map[chan View]struct{}),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns the current state in flat form.
func (s *Session) View() View {
	return Flatten(s.State())
}

// Submit starts an analysis of src. The file is read before Submit returns,
// so src only has to stay readable for the duration of the call. The remote
// call runs in the background and is not bound to ctx's cancellation.
//
// A read failure leaves the session Failed and is also returned, wrapped in
// ErrFileRead or ErrEmptyImage.
func (s *Session) Submit(ctx context.Context, src Source) error {
	s.mu.Lock()
	if !Flatten(s.state).UploadEnabled() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.token++
	token := s.token
	s.setLocked(Loading{})
	s.mu.Unlock()

	mimeType := src.Type()
	log := logger.WithFields(logrus.Fields{
		"file":      src.Name(),
		"mime_type": mimeType,
	})

	data, err := readSource(src)
	if err != nil {
		log.WithError(err).Warn("Failed to read upload")
		msg := MessageFileRead
		if errors.Is(err, ErrEmptyImage) {
			msg = MessageEmptyData
		}
		s.complete(token, Failed{Message: msg})
		return err
	}

	preview := DataURI(mimeType, data)

	s.mu.Lock()
	if token != s.token {
		s.mu.Unlock()
		return nil
	}
	actx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.setLocked(Loading{Preview: preview})
	s.mu.Unlock()

	log.WithField("image_bytes", len(data)).Info("Analysis started")

	go func() {
		defer cancel()
		result, err := s.analyzer.Analyze(actx, data, mimeType)
		if err != nil {
			log.WithError(err).Error("Analysis failed")
			s.complete(token, Failed{Preview: preview, Message: llm.UserMessage})
			return
		}
		s.complete(token, Succeeded{Preview: preview, Result: result})
	}()
	return nil
}

// Reset returns the session to Idle and abandons any analysis in flight.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.setLocked(Idle{})
}

// Subscribe returns a channel that receives the current view immediately
// and then every later change. Slow readers only see the latest view. The
// returned func unsubscribes and must be called.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	ch <- Flatten(s.state)
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
}

// Wait blocks until the session is no longer loading and returns that view.
func (s *Session) Wait(ctx context.Context) (View, error) {
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	for {
		select {
		case v := <-ch:
			if !v.IsLoading {
				return v, nil
			}
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}

// complete applies a terminal state if token is still current.
func (s *Session) complete(token uint64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.token {
		logger.WithField("token", token).Debug("Dropping stale completion")
		return
	}
	s.cancel = nil
	s.setLocked(st)
}

func (s *Session) setLocked(st State) {
	s.state = st
	v := Flatten(st)
	for ch := range s.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func readSource(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileRead, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// DataURI encodes data as a base64 data URI. An empty mimeType is reported
// as application/octet-stream.
func DataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
