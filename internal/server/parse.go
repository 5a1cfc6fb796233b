package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// ParseHandler handles PDF uploads.
type ParseHandler struct {
	logger   *observability.Logger
	proc     Processor
	maxBytes int64
}

// NewParseHandler creates a new parse handler. maxBytes <= 0 disables the limit.
func NewParseHandler(logger *observability.Logger, proc Processor, maxBytes int64) *ParseHandler {
	return &ParseHandler{
		logger:   observability.OrNop(logger),
		proc:     proc,
		maxBytes: maxBytes,
	}
}

// Parse handles POST /parse.
//
// The PDF is read from the multipart field "file". Query flags:
// overlay=true replaces each page image with its annotated rendering,
// html=true returns a rendered Markdown preview instead of JSON.
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "upload too large", err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required", err.Error())
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.writeError(w, http.StatusBadRequest, "only PDF uploads are supported", header.Filename)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read upload", err.Error())
		return
	}

	h.logger.Info().
		Str("file", header.Filename).
		Int("bytes", len(data)).
		Msg("parsing upload")

	doc, err := h.proc.ProcessBytes(ctx, header.Filename, data, nil)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error().Err(err).Str("file", header.Filename).Msg("parse failed")
		}
		h.writeError(w, status, "parse failed", err.Error())
		return
	}

	if flag(r, "overlay") {
		if err := applyOverlays(doc); err != nil {
			h.writeError(w, http.StatusInternalServerError, "overlay failed", err.Error())
			return
		}
	}

	if flag(r, "html") {
		page, err := document.RenderHTML(doc.Source, doc.Markdown)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "render failed", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, page)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// applyOverlays swaps every page image for a copy with its boxes drawn in.
func applyOverlays(doc *domain.Document) error {
	for i := range doc.Pages {
		p := &doc.Pages[i]
		if len(p.RawImage) == 0 {
			continue
		}
		img, err := document.Overlay(p.RawImage, p.Elements)
		if err != nil {
			return err
		}
		p.Image = domain.ImageDataURL(img)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case domain.IsType(err, domain.ErrorTypeValidation):
		return http.StatusBadRequest
	case domain.IsType(err, domain.ErrorTypeRasterization):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func flag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (h *ParseHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := map[string]string{
		"error": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	json.NewEncoder(w).Encode(resp)
}
