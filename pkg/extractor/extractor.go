// Package extractor is the public entry point for turning PDFs into
// bounding-box annotated documents with a vision language model.
package extractor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spherical/bbox-ocr/internal/cache"
	"github.com/spherical/bbox-ocr/internal/config"
	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/extract"
	"github.com/spherical/bbox-ocr/internal/llm"
	"github.com/spherical/bbox-ocr/internal/observability"
	"github.com/spherical/bbox-ocr/internal/pdf"
)

// Re-export domain types for public API
type (
	StreamEvent  = domain.StreamEvent
	EventType    = domain.EventType
	Document     = domain.Document
	DocumentPage = domain.DocumentPage
	PageResult   = domain.PageResult
	PageStatus   = domain.PageStatus
	Element      = domain.Element
	ElementKind  = domain.ElementKind
	BBox         = domain.BBox
)

// Event type constants
const (
	EventStart          = domain.EventStart
	EventPageProcessing = domain.EventPageProcessing
	EventPageRetry      = domain.EventPageRetry
	EventPageComplete   = domain.EventPageComplete
	EventError          = domain.EventError
	EventComplete       = domain.EventComplete
)

// Page status constants
const (
	StatusOK      = domain.StatusOK
	StatusPartial = domain.StatusPartial
	StatusFailed  = domain.StatusFailed
)

// Client is the main entry point for the library
type Client struct {
	service *extract.Service
	pages   *cache.PageStore
	cfg     *config.Config
	logger  *observability.Logger
}

// NewClient loads configuration from CONFIG_PATH (optional), .env and the
// environment, then builds a client.
func NewClient() (*Client, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, domain.ConfigError("load configuration", err)
	}
	return NewClientWithConfig(cfg, nil)
}

// NewClientWithConfig builds a client from an explicit configuration.
// A nil logger derives one from cfg.Observability.
func NewClientWithConfig(cfg *config.Config, logger *observability.Logger) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, domain.ConfigError("invalid configuration", err)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "bbox-ocr",
		})
	}

	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, domain.CacheError("connect page cache", err)
	}
	pages := cache.NewPageStore(cacheClient, cfg.Cache.TTL, logger)

	inference := llm.NewClient(llm.ClientConfig{
		BaseURL:   cfg.Inference.BaseURL,
		APIKey:    cfg.Inference.APIKey,
		RateLimit: cfg.Inference.RateLimit,
		RateBurst: cfg.Inference.RateBurst,
	}, logger)
	builder := llm.NewBuilder(cfg.Inference.Model, cfg.Inference.MaxTokens)

	service := extract.NewService(builder, inference, extract.Config{
		DPI:     cfg.PDF.DPI,
		Workers: cfg.Pipeline.Workers,
		Timeout: cfg.Inference.Timeout,
		Model:   cfg.Inference.Model,
		Retry: extract.RetryConfig{
			MaxRetries:     cfg.Pipeline.MaxRetries,
			Budget:         cfg.Pipeline.RetryBudget,
			InitialBackoff: cfg.Pipeline.InitialBackoff,
			MaxBackoff:     cfg.Pipeline.MaxBackoff,
		},
	}, extract.WithPageStore(pages), extract.WithLogger(logger))

	return &Client{
		service: service,
		pages:   pages,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Logger returns the client logger.
func (c *Client) Logger() *observability.Logger {
	return c.logger
}

// ProcessFile runs the pipeline over the PDF at path. Progress events are
// sent to eventCh when it is non-nil; slow readers miss events rather than
// stall the pipeline.
func (c *Client) ProcessFile(ctx context.Context, path string, eventCh chan<- StreamEvent) (*Document, error) {
	src, err := pdf.Open(path, c.logger)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	doc, err := c.service.Process(ctx, src, eventCh)
	if err != nil {
		return nil, err
	}
	doc.Source = filepath.Base(path)
	return doc, nil
}

// ProcessBytes runs the pipeline over an in-memory PDF.
func (c *Client) ProcessBytes(ctx context.Context, name string, data []byte, eventCh chan<- StreamEvent) (*Document, error) {
	src, err := pdf.OpenBytes(name, data, c.logger)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	doc, err := c.service.Process(ctx, src, eventCh)
	if err != nil {
		return nil, err
	}
	doc.Source = name
	return doc, nil
}

// Close releases the page cache connection.
func (c *Client) Close() error {
	return c.pages.Close()
}
