package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/internal/domain"
)

type outputOptions struct {
	Dir        string
	OverlayDir string
	HTML       bool
}

// writeOutputs writes <name>.json and <name>.md, plus overlay PNGs and an
// HTML preview when requested. It returns the written paths.
func writeOutputs(doc *domain.Document, name string, opts outputOptions) ([]string, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, domain.IOError("create output directory", err)
	}

	var written []string
	write := func(path string, data []byte) error {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return domain.IOError(fmt.Sprintf("write %s", path), err)
		}
		written = append(written, path)
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, domain.IOError("encode document", err)
	}
	if err := write(filepath.Join(opts.Dir, name+".json"), data); err != nil {
		return written, err
	}
	if err := write(filepath.Join(opts.Dir, name+".md"), []byte(doc.Markdown)); err != nil {
		return written, err
	}

	if opts.HTML {
		page, err := document.RenderHTML(doc.Source, doc.Markdown)
		if err != nil {
			return written, err
		}
		if err := write(filepath.Join(opts.Dir, name+".html"), []byte(page)); err != nil {
			return written, err
		}
	}

	if opts.OverlayDir != "" {
		if err := os.MkdirAll(opts.OverlayDir, 0o755); err != nil {
			return written, domain.IOError("create overlay directory", err)
		}
		for _, p := range doc.Pages {
			if len(p.RawImage) == 0 {
				continue
			}
			img, err := document.Overlay(p.RawImage, p.Elements)
			if err != nil {
				return written, err
			}
			path := filepath.Join(opts.OverlayDir, fmt.Sprintf("%s_page_%d.png", name, p.PageIndex+1))
			if err := write(path, img); err != nil {
				return written, err
			}
		}
	}

	return written, nil
}
