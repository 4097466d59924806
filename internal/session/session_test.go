package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"
	"time"

	"github.com/kamilpajak/radiolens/internal/llm"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetOutput(io.Discard)
}

type analyzerFunc func(ctx context.Context, image []byte, mimeType string) (*models.AnalysisResult, error)

func (f analyzerFunc) Analyze(ctx context.Context, image []byte, mimeType string) (*models.AnalysisResult, error) {
	return f(ctx, image, mimeType)
}

type fakeSource struct {
	name    string
	typ     string
	data    []byte
	openErr error
	readErr error
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) Type() string { return f.typ }

func (f *fakeSource) Open() (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if f.readErr != nil {
		return io.NopCloser(iotest.ErrReader(f.readErr)), nil
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func pngSource() *fakeSource {
	return &fakeSource{name: "chest.png", typ: "image/png", data: []byte{0x89, 'P', 'N', 'G'}}
}

var sampleResult = &models.AnalysisResult{
	Diagnoses:   []models.Diagnosis{{Condition: "Pneumonia", Probability: 0.62}},
	Explanation: "Patchy consolidation.",
	AttentionArea: models.AttentionArea{
		X: 10, Y: 20, Width: 30, Height: 15, Description: "opacity in left lower lobe",
	},
}

// call is one parked Analyze invocation.
type call struct {
	ctx     context.Context
	release chan error
}

// blocking returns an analyzer that parks every call until its release
// channel receives; a nil error completes with sampleResult.
func blocking(calls chan<- *call) Analyzer {
	return analyzerFunc(func(ctx context.Context, _ []byte, _ string) (*models.AnalysisResult, error) {
		c := &call{ctx: ctx, release: make(chan error, 1)}
		calls <- c
		if err := <-c.release; err != nil {
			return nil, err
		}
		return sampleResult, nil
	})
}

func waitView(t *testing.T, s *Session) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := s.Wait(ctx)
	require.NoError(t, err)
	return v
}

func TestSubmit_Succeeds(t *testing.T) {
	var gotImage []byte
	var gotMime string
	s := New(analyzerFunc(func(_ context.Context, image []byte, mimeType string) (*models.AnalysisResult, error) {
		gotImage, gotMime = image, mimeType
		return sampleResult, nil
	}))

	src := pngSource()
	require.NoError(t, s.Submit(context.Background(), src))

	v := waitView(t, s)
	assert.False(t, v.IsLoading)
	assert.Empty(t, v.Error)
	assert.Same(t, sampleResult, v.Result)
	assert.Equal(t, "data:image/png;base64,iVBORw==", v.ImagePreview)
	assert.Equal(t, src.data, gotImage)
	assert.Equal(t, "image/png", gotMime)

	st, ok := s.State().(Succeeded)
	require.True(t, ok)
	assert.Equal(t, v.ImagePreview, st.Preview)
}

func TestSubmit_AnalyzerFailureKeepsPreview(t *testing.T) {
	s := New(analyzerFunc(func(context.Context, []byte, string) (*models.AnalysisResult, error) {
		return nil, errors.New("gemini API error: 500 Internal Server Error - boom")
	}))

	require.NoError(t, s.Submit(context.Background(), pngSource()))

	v := waitView(t, s)
	assert.Equal(t, llm.UserMessage, v.Error)
	assert.NotContains(t, v.Error, "boom")
	assert.Nil(t, v.Result)
	assert.NotEmpty(t, v.ImagePreview)
	assert.False(t, v.UploadEnabled())
	assert.True(t, v.CanStartOver())
}

func TestSubmit_ReadFailureLeavesNoPreview(t *testing.T) {
	tests := []struct {
		name    string
		src     *fakeSource
		wantErr error
		wantMsg string
	}{
		{"open fails", &fakeSource{name: "x.png", typ: "image/png", openErr: errors.New("permission denied")}, ErrFileRead, MessageFileRead},
		{"read fails", &fakeSource{name: "x.png", typ: "image/png", readErr: errors.New("unexpected EOF")}, ErrFileRead, MessageFileRead},
		{"empty payload", &fakeSource{name: "x.png", typ: "image/png"}, ErrEmptyImage, MessageEmptyData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			s := New(analyzerFunc(func(context.Context, []byte, string) (*models.AnalysisResult, error) {
				called = true
				return sampleResult, nil
			}))

			err := s.Submit(context.Background(), tt.src)
			assert.ErrorIs(t, err, tt.wantErr)

			v := s.View()
			assert.Equal(t, View{Error: tt.wantMsg}, v)
			assert.False(t, called)
			assert.True(t, v.UploadEnabled())
			assert.False(t, v.CanStartOver())
		})
	}
}

func TestSubmit_RetryAfterReadFailure(t *testing.T) {
	s := New(analyzerFunc(func(context.Context, []byte, string) (*models.AnalysisResult, error) {
		return sampleResult, nil
	}))

	err := s.Submit(context.Background(), &fakeSource{name: "broken", openErr: errors.New("gone")})
	require.ErrorIs(t, err, ErrFileRead)

	require.NoError(t, s.Submit(context.Background(), pngSource()))
	v := waitView(t, s)
	assert.Empty(t, v.Error)
	assert.NotNil(t, v.Result)
}

func TestSubmit_BusyWhileLoadingAndAfterSuccess(t *testing.T) {
	calls := make(chan *call, 1)
	s := New(blocking(calls))

	require.NoError(t, s.Submit(context.Background(), pngSource()))
	c := <-calls

	v := s.View()
	assert.True(t, v.IsLoading)
	assert.NotEmpty(t, v.ImagePreview)
	assert.Nil(t, v.Result)
	assert.False(t, v.UploadEnabled())
	assert.ErrorIs(t, s.Submit(context.Background(), pngSource()), ErrBusy)

	c.release <- nil
	v = waitView(t, s)
	require.NotNil(t, v.Result)
	assert.ErrorIs(t, s.Submit(context.Background(), pngSource()), ErrBusy)
}

func TestReset_ClearsEverything(t *testing.T) {
	t.Run("after success", func(t *testing.T) {
		s := New(analyzerFunc(func(context.Context, []byte, string) (*models.AnalysisResult, error) {
			return sampleResult, nil
		}))
		require.NoError(t, s.Submit(context.Background(), pngSource()))
		waitView(t, s)

		s.Reset()
		assert.Equal(t, View{}, s.View())
		assert.IsType(t, Idle{}, s.State())
	})

	t.Run("after failure", func(t *testing.T) {
		s := New(analyzerFunc(func(context.Context, []byte, string) (*models.AnalysisResult, error) {
			return nil, errors.New("nope")
		}))
		require.NoError(t, s.Submit(context.Background(), pngSource()))
		waitView(t, s)

		s.Reset()
		assert.Equal(t, View{}, s.View())
	})

	t.Run("while loading", func(t *testing.T) {
		calls := make(chan *call, 1)
		s := New(blocking(calls))
		require.NoError(t, s.Submit(context.Background(), pngSource()))
		c := <-calls

		s.Reset()
		assert.Equal(t, View{}, s.View())
		c.release <- nil
	})

	t.Run("when idle", func(t *testing.T) {
		s := New(nil)
		s.Reset()
		assert.Equal(t, View{}, s.View())
	})
}

func TestReset_CancelsInFlightCall(t *testing.T) {
	calls := make(chan *call, 1)
	s := New(blocking(calls))

	require.NoError(t, s.Submit(context.Background(), pngSource()))
	c := <-calls
	require.NoError(t, c.ctx.Err())

	s.Reset()
	select {
	case <-c.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("analysis context was not cancelled by Reset")
	}
	c.release <- c.ctx.Err()
}

func TestStaleCompletionIsIgnored(t *testing.T) {
	calls := make(chan *call, 2)
	s := New(blocking(calls))

	require.NoError(t, s.Submit(context.Background(), pngSource()))
	first := <-calls
	s.Reset()

	second := &fakeSource{name: "second.jpg", typ: "image/jpeg", data: []byte("jpeg")}
	require.NoError(t, s.Submit(context.Background(), second))
	next := <-calls

	// The abandoned call succeeds while the new one is still running.
	first.release <- nil

	want := View{IsLoading: true, ImagePreview: DataURI("image/jpeg", second.data)}
	assert.Never(t, func() bool { return s.View() != want }, 100*time.Millisecond, 10*time.Millisecond)

	next.release <- nil
	v := waitView(t, s)
	assert.Equal(t, want.ImagePreview, v.ImagePreview)
	assert.NotNil(t, v.Result)
}

func TestSubmit_AnalysisOutlivesRequestContext(t *testing.T) {
	calls := make(chan *call, 1)
	s := New(blocking(calls))

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(reqCtx, pngSource()))
	cancel()

	c := <-calls
	assert.NoError(t, c.ctx.Err())
	c.release <- nil
	assert.NotNil(t, waitView(t, s).Result)
}

func TestSubscribe_SeesTransitions(t *testing.T) {
	calls := make(chan *call, 1)
	s := New(blocking(calls))

	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()
	assert.Equal(t, View{}, <-ch)

	require.NoError(t, s.Submit(context.Background(), pngSource()))
	c := <-calls
	v := <-ch
	assert.True(t, v.IsLoading)

	c.release <- nil
	require.Eventually(t, func() bool {
		select {
		case v = <-ch:
		default:
		}
		return v.Result != nil
	}, time.Second, 5*time.Millisecond)
	assert.False(t, v.IsLoading)
}

func TestWait_ContextDone(t *testing.T) {
	calls := make(chan *call, 1)
	s := New(blocking(calls))
	require.NoError(t, s.Submit(context.Background(), pngSource()))
	c := <-calls

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	c.release <- nil
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  View
	}{
		{"idle", Idle{}, View{}},
		{"loading without preview", Loading{}, View{IsLoading: true}},
		{"loading", Loading{Preview: "data:x"}, View{IsLoading: true, ImagePreview: "data:x"}},
		{"succeeded", Succeeded{Preview: "data:x", Result: sampleResult}, View{Result: sampleResult, ImagePreview: "data:x"}},
		{"failed", Failed{Preview: "data:x", Message: "m"}, View{Error: "m", ImagePreview: "data:x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(tt.state))
		})
	}
}

func TestView_Visibility(t *testing.T) {
	assert.True(t, View{}.UploadEnabled())
	assert.False(t, View{}.CanStartOver())
	assert.False(t, View{}.HasResults())

	assert.False(t, View{IsLoading: true}.UploadEnabled())
	assert.True(t, View{IsLoading: true}.CanStartOver())

	done := View{Result: sampleResult, ImagePreview: "data:x"}
	assert.True(t, done.HasResults())
	assert.False(t, done.UploadEnabled())
	assert.False(t, View{Result: sampleResult}.HasResults())
}

func TestDataURI(t *testing.T) {
	assert.Equal(t, "data:image/webp;base64,AQID", DataURI("image/webp", []byte{1, 2, 3}))
	assert.Equal(t, "data:application/octet-stream;base64,AQID", DataURI("", []byte{1, 2, 3}))
}
