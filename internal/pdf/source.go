// Package pdf rasterizes PDF pages with MuPDF via go-fitz.
package pdf

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// Source renders pages of one open PDF. MuPDF contexts are not safe for
// concurrent use, so renders are serialized.
type Source struct {
	mu        sync.Mutex
	doc       *fitz.Document
	name      string
	pages     int
	validator *Validator
}

var _ domain.PageSource = (*Source)(nil)

// Open validates and opens the PDF at path. logger may be nil.
func Open(path string, logger *observability.Logger) (*Source, error) {
	v := NewValidator(logger)
	if err := v.ValidatePDFPath(path); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.RasterizationError("failed to open PDF", err)
	}
	return newSource(path, doc, v)
}

// OpenBytes opens an in-memory PDF. name is used for logging only.
func OpenBytes(name string, data []byte, logger *observability.Logger) (*Source, error) {
	v := NewValidator(logger)
	if err := v.ValidatePDFBytes(data); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, domain.RasterizationError("failed to open PDF", err)
	}
	return newSource(name, doc, v)
}

func newSource(name string, doc *fitz.Document, v *Validator) (*Source, error) {
	pages := doc.NumPage()
	if pages == 0 {
		doc.Close()
		return nil, domain.ValidationError("PDF has no pages", nil)
	}
	return &Source{doc: doc, name: name, pages: pages, validator: v}, nil
}

// Name returns the path or upload name the source was opened from.
func (s *Source) Name() string {
	return s.name
}

func (s *Source) PageCount() int {
	return s.pages
}

// Render rasterizes the zero-based page at dpi and returns PNG bytes.
func (s *Source) Render(ctx context.Context, pageIndex int, dpi int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pageIndex < 0 || pageIndex >= s.pages {
		return nil, domain.RasterizationError(fmt.Sprintf("page %d out of range (document has %d pages)", pageIndex, s.pages), nil)
	}
	if err := s.validator.ValidateDPI(dpi); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, domain.RasterizationError("document is closed", nil)
	}

	png, err := s.doc.ImagePNG(pageIndex, float64(dpi))
	if err != nil {
		return nil, domain.RasterizationError(fmt.Sprintf("failed to render page %d", pageIndex+1), err)
	}
	return png, nil
}

// Close releases the MuPDF document. Safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil
	}
	err := s.doc.Close()
	s.doc = nil
	return err
}
