package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

const (
	MinDPI = 36
	MaxDPI = 600

	// defaultLargeFileSize triggers a warning, not a rejection
	defaultLargeFileSize = 100 * 1024 * 1024
)

var pdfMagic = []byte("%PDF-")

// Validator provides input validation for PDF files
type Validator struct {
	logger        *observability.Logger
	largeFileSize int64
}

// NewValidator creates a new validator. Non-fatal findings, such as a very
// large file, are logged as warnings; logger may be nil.
func NewValidator(logger *observability.Logger) *Validator {
	return &Validator{
		logger:        observability.OrNop(logger).WithOperation("pdf"),
		largeFileSize: defaultLargeFileSize,
	}
}

func (v *Validator) warnIfLarge(size int64) {
	if size > v.largeFileSize {
		v.logger.Warn().
			Int64("size_mb", size/(1024*1024)).
			Msg("PDF file is very large, processing may take a while")
	}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	if info.Size() == 0 {
		return domain.ValidationError(fmt.Sprintf("file is empty: %s", path), nil)
	}

	v.warnIfLarge(info.Size())

	file, err := os.Open(path)
	if err != nil {
		return domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	defer file.Close()

	head := make([]byte, 1024)
	n, _ := file.Read(head)
	if !bytes.Contains(head[:n], pdfMagic) {
		return domain.ValidationError(fmt.Sprintf("file has no PDF header: %s", path), nil)
	}

	return nil
}

// ValidatePDFBytes checks that data looks like a PDF document
func (v *Validator) ValidatePDFBytes(data []byte) error {
	if len(data) == 0 {
		return domain.ValidationError("PDF content is empty", nil)
	}
	v.warnIfLarge(int64(len(data)))
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, pdfMagic) {
		return domain.ValidationError("content is not a PDF", nil)
	}
	return nil
}

// ValidateDPI validates the rasterization resolution
func (v *Validator) ValidateDPI(dpi int) error {
	if dpi < MinDPI || dpi > MaxDPI {
		return domain.ValidationError(fmt.Sprintf("dpi must be between %d and %d, got %d", MinDPI, MaxDPI, dpi), nil)
	}
	return nil
}
