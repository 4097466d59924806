package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	name        string
	contentType string
	data        []byte
}

// multipartRequest builds a POST carrying the given files under field.
func multipartRequest(t *testing.T, field string, files ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func readAll(t *testing.T, f *File) []byte {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestReceive_SingleFileCallbackOnce(t *testing.T) {
	for _, mime := range DefaultAccept {
		t.Run(mime, func(t *testing.T) {
			data := []byte("fake image bytes for " + mime)
			req := multipartRequest(t, FieldName, part{"chest.img", mime, data})

			var calls []*File
			var content []byte
			s := &Surface{OnUpload: func(f *File) {
				calls = append(calls, f)
				content = readAll(t, f)
			}}

			require.NoError(t, s.Receive(httptest.NewRecorder(), req))
			require.Len(t, calls, 1)
			assert.Equal(t, "chest.img", calls[0].Name())
			assert.Equal(t, mime, calls[0].Type())
			assert.Equal(t, int64(len(data)), calls[0].Size())
			assert.Equal(t, data, content)
		})
	}
}

func TestReceive_DisallowedTypePassesThrough(t *testing.T) {
	req := multipartRequest(t, FieldName, part{"scan.gif", "image/gif", []byte("GIF89a")})

	var got *File
	s := &Surface{Accept: DefaultAccept, OnUpload: func(f *File) { got = f }}

	require.NoError(t, s.Receive(httptest.NewRecorder(), req))
	require.NotNil(t, got)
	assert.Equal(t, "image/gif", got.Type())
}

func TestReceive_FirstOfSeveralFiles(t *testing.T) {
	req := multipartRequest(t, FieldName,
		part{"first.png", "image/png", []byte("1")},
		part{"second.png", "image/png", []byte("2")},
	)

	calls := 0
	var got *File
	s := &Surface{OnUpload: func(f *File) { calls++; got = f }}

	require.NoError(t, s.Receive(httptest.NewRecorder(), req))
	assert.Equal(t, 1, calls)
	assert.Equal(t, "first.png", got.Name())
}

func TestReceive_Disabled(t *testing.T) {
	req := multipartRequest(t, FieldName, part{"chest.png", "image/png", []byte("x")})

	called := false
	s := &Surface{Disabled: true, OnUpload: func(*File) { called = true }}

	err := s.Receive(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, called)
	assert.Equal(t, http.StatusConflict, StatusCode(err))
}

func TestReceive_NoFile(t *testing.T) {
	req := multipartRequest(t, "other", part{"chest.png", "image/png", []byte("x")})

	called := false
	s := &Surface{OnUpload: func(*File) { called = true }}

	err := s.Receive(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestReceive_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")

	s := &Surface{OnUpload: func(*File) { t.Fatal("unexpected callback") }}
	err := s.Receive(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse form")
}

func TestReceive_SizeNotEnforcedByDefault(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 11<<20)
	req := multipartRequest(t, FieldName, part{"big.png", "image/png", big})

	var got *File
	s := &Surface{OnUpload: func(f *File) { got = f }}

	require.NoError(t, s.Receive(httptest.NewRecorder(), req))
	require.NotNil(t, got)
	assert.Equal(t, int64(len(big)), got.Size())
}

func TestReceive_MaxBytes(t *testing.T) {
	req := multipartRequest(t, FieldName, part{"big.png", "image/png", bytes.Repeat([]byte{1}, 4096)})

	called := false
	s := &Surface{MaxBytes: 1024, OnUpload: func(*File) { called = true }}

	err := s.Receive(httptest.NewRecorder(), req)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusCode(err))
}

func TestView(t *testing.T) {
	v := (&Surface{}).View()
	assert.Equal(t, "image/png, image/jpeg, image/webp", v.Accept)
	assert.False(t, v.Disabled)
	assert.Equal(t, "file", v.Field)
	assert.Contains(t, v.Hint, "10MB")

	v = (&Surface{Disabled: true, Accept: []string{"image/png"}}).View()
	assert.Equal(t, "image/png", v.Accept)
	assert.True(t, v.Disabled)
}
