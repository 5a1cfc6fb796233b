package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/bbox-ocr/cmd/bbox-ocr/ui"
	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/pkg/extractor"
)

var (
	parseOutputDir  string
	parseOverlayDir string
	parseHTML       bool
	parseWorkers    int
	parseDPI        int
)

var parseCmd = &cobra.Command{
	Use:   "parse <pdf>",
	Short: "Extract layout elements from a PDF",
	Long:  "Process every page of a PDF and write <name>.json and <name>.md next to it or into --output-dir.",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseOutputDir, "output-dir", "o", "", "directory for output files (default: the PDF's directory)")
	parseCmd.Flags().StringVar(&parseOverlayDir, "overlay-dir", "", "write per-page PNGs with bounding boxes drawn in")
	parseCmd.Flags().BoolVar(&parseHTML, "html", false, "also write an HTML preview of the Markdown")
	parseCmd.Flags().IntVarP(&parseWorkers, "workers", "w", 0, "concurrent pages (overrides config)")
	parseCmd.Flags().IntVar(&parseDPI, "dpi", 0, "rasterization DPI (overrides config)")
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	pdfPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !verbose {
		// keep log lines from tearing the progress bar
		cfg.Observability.LogLevel = "warn"
	}
	if parseWorkers > 0 {
		cfg.Pipeline.Workers = parseWorkers
	}
	if parseDPI > 0 {
		cfg.PDF.DPI = parseDPI
	}

	client, err := extractor.NewClientWithConfig(cfg, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signalContext()
	defer stop()

	outDir := parseOutputDir
	if outDir == "" {
		outDir = filepath.Dir(pdfPath)
	}

	ui.Section("PDF Extraction")
	ui.Info("PDF file: %s", pdfPath)
	ui.Info("Model: %s", cfg.Inference.Model)
	ui.Debug("Endpoint: %s, workers: %d, dpi: %d", cfg.Inference.BaseURL, cfg.Pipeline.Workers, cfg.PDF.DPI)
	ui.Newline()

	type outcome struct {
		doc *extractor.Document
		err error
	}
	started := time.Now()
	events := make(chan extractor.StreamEvent, 100)
	done := make(chan outcome, 1)
	go func() {
		doc, err := client.ProcessFile(ctx, pdfPath, events)
		close(events)
		done <- outcome{doc, err}
	}()

	spin := ui.NewSpinner("Opening PDF...")
	spin.Start()

	var bar *ui.ProgressBar
	completed := 0
	for ev := range events {
		switch ev.Type {
		case extractor.EventStart:
			spin.Stop()
			if n, ok := ev.Payload.(int); ok {
				bar = ui.NewProgressBar(int64(n), "Pages")
			}
		case extractor.EventPageRetry:
			ui.Debug("page %d: retrying after %v", ev.PageIndex+1, ev.Payload)
		case extractor.EventPageComplete:
			completed++
			bar.Set(int64(completed))
		case extractor.EventError:
			if ev.PageIndex >= 0 {
				ui.Debug("page %d: %v", ev.PageIndex+1, ev.Payload)
			}
		}
	}
	spin.Stop()

	res := <-done
	if res.err != nil {
		return fmt.Errorf("extraction failed: %w", res.err)
	}
	bar.Finish()
	doc := res.doc

	written, err := writeOutputs(doc, baseName(pdfPath), outputOptions{
		Dir:        outDir,
		OverlayDir: parseOverlayDir,
		HTML:       parseHTML,
	})
	if err != nil {
		return err
	}

	if ctx.Err() != nil {
		ui.Warning("Interrupted: unfinished pages were marked failed")
	}
	printSummary(doc, time.Since(started))
	for _, path := range written {
		ui.Success("Wrote %s", path)
	}
	return nil
}

func printSummary(doc *extractor.Document, elapsed time.Duration) {
	stats := doc.Stats()

	ui.Section("Extraction Summary")
	ui.Table([]string{"Metric", "Value"}, [][]string{
		{"Document", doc.ID},
		{"Pages", strconv.Itoa(stats.PagesProcessed)},
		{"OK", strconv.Itoa(stats.SuccessfulPages)},
		{"Partial", strconv.Itoa(stats.PartialPages)},
		{"Failed", strconv.Itoa(stats.FailedPages)},
		{"Markdown sections", strconv.Itoa(len(document.PageHeadings(doc.Markdown)))},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
	})
	ui.Newline()

	for _, p := range doc.Pages {
		switch {
		case p.Status == extractor.StatusFailed:
			ui.Error("Page %d failed: %s", p.PageIndex+1, p.ErrorDetail)
		case p.Status == extractor.StatusPartial:
			ui.Warning("Page %d incomplete: %s", p.PageIndex+1, p.ErrorDetail)
		case p.NeedsReview:
			ui.Warning("Page %d has no elements, check it by hand", p.PageIndex+1)
		}
	}
}
