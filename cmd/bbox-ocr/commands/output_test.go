package commands

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/bbox-ocr/cmd/bbox-ocr/ui"
	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/internal/domain"
)

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleDocument(t *testing.T) *domain.Document {
	doc := document.Assemble([]domain.PageResult{
		{
			PageIndex: 0,
			Status:    domain.StatusOK,
			RawImage:  pagePNG(t),
			Elements:  []domain.Element{{Kind: domain.KindText, BBox: domain.BBox{0, 0, 500, 500}, Content: "Title"}},
		},
		{
			PageIndex:   1,
			Status:      domain.StatusFailed,
			RawImage:    pagePNG(t),
			Elements:    []domain.Element{},
			ErrorDetail: "timeout: inference call exceeded 1s",
		},
	})
	doc.ID = "doc-1"
	doc.Source = "report.pdf"
	return doc
}

func TestWriteOutputs(t *testing.T) {
	dir := t.TempDir()
	overlays := filepath.Join(dir, "overlays")
	doc := sampleDocument(t)

	written, err := writeOutputs(doc, "report", outputOptions{Dir: dir, OverlayDir: overlays, HTML: true})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "report.json"),
		filepath.Join(dir, "report.md"),
		filepath.Join(dir, "report.html"),
		filepath.Join(overlays, "report_page_1.png"),
		filepath.Join(overlays, "report_page_2.png"),
	}, written)

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Equal(t, doc.Markdown, string(md))

	raw, err := os.ReadFile(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	var decoded domain.Document
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "doc-1", decoded.ID)
	require.Len(t, decoded.Pages, 2)
	assert.Equal(t, domain.StatusFailed, decoded.Pages[1].Status)
	assert.NotContains(t, string(raw), "RawImage")

	overlay, err := os.ReadFile(filepath.Join(overlays, "report_page_1.png"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(overlay))
	assert.NoError(t, err)
}

func TestWriteOutputsMinimal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")

	written, err := writeOutputs(sampleDocument(t), "report", outputOptions{Dir: dir})
	require.NoError(t, err)
	assert.Len(t, written, 2)
	assert.NoFileExists(t, filepath.Join(dir, "report.html"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "scan", baseName("/tmp/in/scan.pdf"))
	assert.Equal(t, "a.b", baseName("a.b.PDF"))
}

func TestPrintSummary(t *testing.T) {
	var stdout, stderr bytes.Buffer
	ui.SetOutput(&stdout, &stderr)
	t.Cleanup(func() { ui.SetOutput(os.Stdout, os.Stderr) })
	ui.InitUI(true, false)

	printSummary(sampleDocument(t), 0)

	assert.Contains(t, stdout.String(), "doc-1")
	assert.Contains(t, stdout.String(), "Markdown sections")
	assert.Contains(t, stderr.String(), "Page 2 failed: timeout")
}
