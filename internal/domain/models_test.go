package domain

import (
	"errors"
	"math/rand"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBBox(t *testing.T) {
	tests := []struct {
		name string
		in   [4]float64
		want BBox
	}{
		{name: "in range", in: [4]float64{10, 20, 300, 400}, want: BBox{10, 20, 300, 400}},
		{name: "negative clamped", in: [4]float64{-5, -1, 50, 60}, want: BBox{0, 0, 50, 60}},
		{name: "over scale clamped", in: [4]float64{900, 950, 1200, 1001}, want: BBox{900, 950, 1000, 1000}},
		{name: "swapped x", in: [4]float64{500, 10, 100, 20}, want: BBox{100, 10, 500, 20}},
		{name: "swapped y", in: [4]float64{10, 800, 20, 100}, want: BBox{10, 100, 20, 800}},
		{name: "rounded", in: [4]float64{10.4, 10.6, 20.5, 30.49}, want: BBox{10, 11, 21, 30}},
		{name: "degenerate", in: [4]float64{50, 50, 50, 50}, want: BBox{50, 50, 50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewBBox(tt.in[0], tt.in[1], tt.in[2], tt.in[3])
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestNewBBoxAlwaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		b := NewBBox(
			rng.Float64()*4000-2000,
			rng.Float64()*4000-2000,
			rng.Float64()*4000-2000,
			rng.Float64()*4000-2000,
		)
		require.True(t, b.Valid(), "bbox %v", b)
	}
}

func TestBBoxValid(t *testing.T) {
	assert.False(t, BBox{10, 0, 5, 10}.Valid())
	assert.False(t, BBox{0, 0, 1001, 10}.Valid())
	assert.False(t, BBox{-1, 0, 10, 10}.Valid())
	assert.True(t, BBox{0, 0, 1000, 1000}.Valid())
}

func TestParseElementKind(t *testing.T) {
	for _, raw := range []string{"text", "Table", " IMAGE ", "stamp", "signature"} {
		_, ok := ParseElementKind(raw)
		assert.True(t, ok, raw)
	}
	for _, raw := range []string{"", "figure", "header", "texts"} {
		_, ok := ParseElementKind(raw)
		assert.False(t, ok, raw)
	}
	k, _ := ParseElementKind("Signature")
	assert.Equal(t, KindSignature, k)
}

func TestTransportErrorTransient(t *testing.T) {
	tests := []struct {
		err  *TransportError
		want bool
	}{
		{TimeoutError("slow", nil), true},
		{ConnectionError("refused", nil), true},
		{HTTPStatusError(http.StatusTooManyRequests, "", nil), true},
		{HTTPStatusError(http.StatusInternalServerError, "", nil), true},
		{HTTPStatusError(http.StatusServiceUnavailable, "", nil), true},
		{HTTPStatusError(http.StatusBadRequest, "", nil), false},
		{HTTPStatusError(http.StatusNotFound, "", nil), false},
		{AuthError(http.StatusUnauthorized, "", nil), false},
		{CancelledError(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Transient())
		})
	}
}

func TestDomainErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	err := RasterizationError("render page 3", base)

	assert.ErrorIs(t, err, base)
	assert.True(t, IsType(err, ErrorTypeRasterization))
	assert.False(t, IsType(err, ErrorTypeValidation))
	assert.Contains(t, err.Error(), "[rasterization] render page 3")
}

func TestDocumentStats(t *testing.T) {
	doc := Document{Pages: []DocumentPage{
		{PageResult: PageResult{Status: StatusOK}},
		{PageResult: PageResult{Status: StatusPartial}},
		{PageResult: PageResult{Status: StatusFailed}},
		{PageResult: PageResult{Status: StatusOK}},
	}}

	stats := doc.Stats()
	assert.Equal(t, 4, stats.PagesProcessed)
	assert.Equal(t, 2, stats.SuccessfulPages)
	assert.Equal(t, 1, stats.PartialPages)
	assert.Equal(t, 1, stats.FailedPages)
}

func TestImageDataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}

	assert.Equal(t, "data:image/png;base64,iVBORw0KGgoAAAANSUhEUg==", ImageDataURL(png))
	assert.Contains(t, ImageDataURL(jpeg), "data:image/jpeg;base64,")
	assert.Contains(t, ImageDataURL([]byte("garbage")), "data:image/png;base64,")
	assert.Equal(t, "data:image/png;base64,", ImageDataURL(nil))
}
