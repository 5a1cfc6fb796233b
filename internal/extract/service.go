// Package extract coordinates page rasterization, inference and parsing
// into a complete document.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/bbox-ocr/internal/cache"
	"github.com/spherical/bbox-ocr/internal/document"
	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
	"github.com/spherical/bbox-ocr/internal/parse"
)

const detailCancelled = "cancelled before the page completed"

// Config holds coordinator settings.
type Config struct {
	DPI     int
	Workers int
	// Timeout bounds each inference call
	Timeout time.Duration
	Model   string
	Retry   RetryConfig
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		DPI:     150,
		Workers: 4,
		Timeout: 300 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Service orchestrates the page pipeline for one document at a time.
// It is safe to call Process concurrently.
type Service struct {
	builder domain.RequestBuilder
	client  domain.InferenceClient
	parser  *parse.Parser
	pages   *cache.PageStore
	cfg     Config
	logger  *observability.Logger
}

var _ domain.Pipeline = (*Service)(nil)

// Option customizes a Service.
type Option func(*Service)

// WithPageStore enables the page-result cache.
func WithPageStore(store *cache.PageStore) Option {
	return func(s *Service) {
		s.pages = store
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new coordinator
func NewService(builder domain.RequestBuilder, client domain.InferenceClient, cfg Config, opts ...Option) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s := &Service{
		builder: builder,
		client:  client,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = observability.OrNop(s.logger).WithOperation("extract")
	s.parser = parse.NewParser(s.logger)
	return s
}

// Process runs every page of src through the pipeline and assembles the
// document. Page failures are recorded in the document; only rasterization
// and validation problems abort with an error. When ctx is cancelled the
// pages that had not finished are marked failed.
func (s *Service) Process(ctx context.Context, src domain.PageSource, eventCh chan<- domain.StreamEvent) (*domain.Document, error) {
	startTime := time.Now()
	n := src.PageCount()
	if n < 1 {
		err := domain.ValidationError("PDF has no pages", nil)
		s.emitError(eventCh, -1, err)
		return nil, err
	}

	docID := uuid.NewString()
	ctx = observability.ContextWithDocumentID(ctx, docID)
	logger := s.logger.WithContext(ctx)

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventStart,
		PageIndex: -1,
		Payload:   n,
		Timestamp: time.Now(),
	})
	logger.Info().Int("pages", n).Int("workers", s.cfg.Workers).Msg("processing document")

	arena := newArena(n)
	budget := newRetryBudget(s.cfg.Retry.Budget)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return s.processPage(gctx, src, i, budget, arena, eventCh)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("document aborted")
		s.emitError(eventCh, -1, err)
		return nil, err
	}

	results := arena.finish(detailCancelled)
	doc := document.Assemble(results)
	doc.ID = docID
	doc.Model = s.cfg.Model

	stats := doc.Stats()
	stats.TotalTime = time.Since(startTime)

	if ctx.Err() != nil {
		logger.Warn().Err(ctx.Err()).Msg("document cancelled, returning completed pages")
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventComplete,
		PageIndex: -1,
		Payload:   stats,
		Timestamp: time.Now(),
	})

	logger.Info().
		Int("ok", stats.SuccessfulPages).
		Int("partial", stats.PartialPages).
		Int("failed", stats.FailedPages).
		Int("retry_budget_left", budget.left()).
		Dur("elapsed", stats.TotalTime).
		Msg("document complete")

	return doc, nil
}

// processPage is the unit of work: rasterize, build, send, parse.
// Only rasterization failures are returned; everything else lands in the arena.
func (s *Service) processPage(ctx context.Context, src domain.PageSource, idx int, budget *retryBudget, arena *arena, eventCh chan<- domain.StreamEvent) error {
	if ctx.Err() != nil {
		return nil
	}

	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventPageProcessing,
		PageIndex: idx,
		Payload:   fmt.Sprintf("Processing page %d", idx+1),
		Timestamp: time.Now(),
	})

	image, err := src.Render(ctx, idx, s.cfg.DPI)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	result := s.runPage(ctx, idx, image, budget, eventCh)
	arena.set(idx, result)

	if result.Status == domain.StatusFailed {
		s.emitError(eventCh, idx, errors.New(result.ErrorDetail))
	}
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventPageComplete,
		PageIndex: idx,
		Payload:   result.Status,
		Timestamp: time.Now(),
	})
	return nil
}

func (s *Service) runPage(ctx context.Context, idx int, image []byte, budget *retryBudget, eventCh chan<- domain.StreamEvent) domain.PageResult {
	logger := s.logger.WithContext(ctx).WithPage(idx)
	result := domain.PageResult{PageIndex: idx, RawImage: image, Elements: []domain.Element{}}

	req, err := s.builder.Build(image, "")
	if err != nil {
		result.Status = domain.StatusFailed
		result.ErrorDetail = err.Error()
		return result
	}

	key := ""
	if s.pages != nil {
		key = cache.KeyFor(req)
		if cached, ok := s.pages.Load(ctx, key); ok {
			cached.PageIndex = idx
			cached.RawImage = image
			logger.Debug().Msg("page served from cache")
			return cached
		}
	}

	var raw *domain.RawResponse
	for {
		result.Attempts++
		raw, err = s.client.Send(ctx, req, s.cfg.Timeout)
		if err == nil {
			break
		}

		if !s.shouldRetry(ctx, err, result.Attempts, budget) {
			result.Status = domain.StatusFailed
			result.ErrorDetail = describeFailure(ctx, err)
			logger.Warn().Err(err).Int("attempts", result.Attempts).Msg("page failed")
			return result
		}

		backoff := calculateBackoff(result.Attempts-1, s.cfg.Retry)
		logger.Warn().Err(err).Int("attempt", result.Attempts).Dur("backoff", backoff).Msg("transient failure, retrying")
		s.emitEvent(eventCh, domain.StreamEvent{
			Type:      domain.EventPageRetry,
			PageIndex: idx,
			Payload:   err.Error(),
			Timestamp: time.Now(),
		})

		if sleepCtx(ctx, backoff) != nil {
			result.Status = domain.StatusFailed
			result.ErrorDetail = detailCancelled
			return result
		}
	}

	parsed := s.parser.Parse(raw)
	result.Status = parsed.Status
	result.Elements = parsed.Elements
	result.ErrorDetail = parsed.Detail
	result.RotationDegrees = parsed.Rotation
	result.NeedsReview = parsed.NeedsReview
	result.FinishReason = raw.FinishReason

	logger.Debug().
		Str("status", string(result.Status)).
		Int("elements", len(result.Elements)).
		Int("dropped", parsed.Dropped).
		Msg("page parsed")

	s.pages.Save(ctx, key, result)
	return result
}

func (s *Service) shouldRetry(ctx context.Context, err error, attempts int, budget *retryBudget) bool {
	if ctx.Err() != nil {
		return false
	}
	var terr *domain.TransportError
	if !errors.As(err, &terr) || !terr.Transient() {
		return false
	}
	if attempts > s.cfg.Retry.MaxRetries {
		return false
	}
	return budget.take()
}

func describeFailure(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return detailCancelled
	}
	var terr *domain.TransportError
	if errors.As(err, &terr) && terr.Kind == domain.TransportCancelled {
		return detailCancelled
	}
	return err.Error()
}

// emitEvent safely emits an event to the channel
func (s *Service) emitEvent(eventCh chan<- domain.StreamEvent, event domain.StreamEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			s.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
		}
	}
}

// emitError emits an error event
func (s *Service) emitError(eventCh chan<- domain.StreamEvent, pageIndex int, err error) {
	s.emitEvent(eventCh, domain.StreamEvent{
		Type:      domain.EventError,
		PageIndex: pageIndex,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
