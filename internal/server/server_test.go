package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/bbox-ocr/internal/config"
	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/internal/domain"
)

type fakeProcessor struct {
	err      error
	gotName  string
	gotBytes []byte
}

func (f *fakeProcessor) ProcessBytes(_ context.Context, name string, data []byte, _ chan<- domain.StreamEvent) (*domain.Document, error) {
	f.gotName = name
	f.gotBytes = data
	if f.err != nil {
		return nil, f.err
	}
	doc := document.Assemble([]domain.PageResult{{
		PageIndex: 0,
		Status:    domain.StatusOK,
		RawImage:  whitePNG(),
		Elements: []domain.Element{
			{Kind: domain.KindText, BBox: domain.BBox{100, 100, 900, 300}, Content: "Invoice"},
		},
	}})
	doc.Source = name
	return doc, nil
}

func whitePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func upload(t *testing.T, url, filename string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func newTestServer(t *testing.T, proc Processor, maxBytes int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(nil, proc, config.ServerConfig{MaxUploadBytes: maxBytes}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, 0)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestParseReturnsDocument(t *testing.T) {
	proc := &fakeProcessor{}
	srv := newTestServer(t, proc, 1<<20)

	resp := upload(t, srv.URL+"/parse", "invoice.pdf", []byte("%PDF-1.4 fake"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc domain.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "invoice.pdf", doc.Source)
	require.Len(t, doc.Pages, 1)
	assert.Equal(t, domain.StatusOK, doc.Pages[0].Status)
	assert.Equal(t, "Invoice", doc.Pages[0].Elements[0].Content)
	assert.Contains(t, doc.Markdown, "# Page 1")

	assert.Equal(t, "invoice.pdf", proc.gotName)
	assert.Equal(t, []byte("%PDF-1.4 fake"), proc.gotBytes)
}

func TestParseOverlayReplacesImages(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, 0)

	plain := upload(t, srv.URL+"/parse", "a.pdf", []byte("%PDF-"))
	var plainDoc domain.Document
	require.NoError(t, json.NewDecoder(plain.Body).Decode(&plainDoc))

	drawn := upload(t, srv.URL+"/parse?overlay=true", "a.pdf", []byte("%PDF-"))
	var drawnDoc domain.Document
	require.NoError(t, json.NewDecoder(drawn.Body).Decode(&drawnDoc))

	assert.True(t, strings.HasPrefix(drawnDoc.Pages[0].Image, "data:image/png;base64,"))
	assert.NotEqual(t, plainDoc.Pages[0].Image, drawnDoc.Pages[0].Image)
}

func TestParseHTMLPreview(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, 0)

	resp := upload(t, srv.URL+"/parse?html=1", "a.pdf", []byte("%PDF-"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<h1>Page 1</h1>")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		procErr  error
		maxBytes int64
		want     []int
	}{
		{name: "wrong extension", filename: "a.txt", content: []byte("x"), want: []int{http.StatusBadRequest}},
		{name: "validation", filename: "a.pdf", content: []byte("x"), procErr: domain.ValidationError("not a PDF", nil), want: []int{http.StatusBadRequest}},
		{name: "rasterization", filename: "a.pdf", content: []byte("x"), procErr: domain.RasterizationError("render failed", nil), want: []int{http.StatusUnprocessableEntity}},
		{name: "internal", filename: "a.pdf", content: []byte("x"), procErr: domain.CacheError("boom", nil), want: []int{http.StatusInternalServerError}},
		// the multipart reader may surface the limit as a malformed body
		{name: "too large", filename: "a.pdf", content: bytes.Repeat([]byte("x"), 4096), maxBytes: 512, want: []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeProcessor{err: tt.procErr}, tt.maxBytes)

			resp := upload(t, srv.URL+"/parse", tt.filename, tt.content)
			assert.Contains(t, tt.want, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestParseRequiresFileField(t *testing.T) {
	srv := newTestServer(t, &fakeProcessor{}, 0)

	resp, err := http.Post(srv.URL+"/parse", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg := config.ServerConfig{Host: "127.0.0.1", Port: port, GracefulShutdown: time.Second}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, NewRouter(nil, &fakeProcessor{}, cfg), nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Addr() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
