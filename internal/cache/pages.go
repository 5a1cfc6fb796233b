package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// PageStore caches parsed page results. A nil *PageStore is a valid,
// always-missing store.
type PageStore struct {
	client Client
	ttl    time.Duration
	logger *observability.Logger
}

type cachedPage struct {
	Status          domain.PageStatus `json:"status"`
	Elements        []domain.Element  `json:"elements"`
	ErrorDetail     string            `json:"error_detail,omitempty"`
	RotationDegrees float64           `json:"rotation_degrees,omitempty"`
	NeedsReview     bool              `json:"needs_review,omitempty"`
	FinishReason    string            `json:"finish_reason,omitempty"`
}

// NewPageStore wraps client. It returns nil when client is nil.
func NewPageStore(client Client, ttl time.Duration, logger *observability.Logger) *PageStore {
	if client == nil {
		return nil
	}
	return &PageStore{
		client: client,
		ttl:    ttl,
		logger: observability.OrNop(logger).WithOperation("page_cache"),
	}
}

// KeyFor derives a cache key from everything that influences the model output.
func KeyFor(req *domain.InferenceRequest) string {
	h := sha256.New()
	for _, part := range []string{
		req.Model,
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		req.SystemPrompt,
		req.UserPrompt,
		req.ImageDataURL,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "page:" + hex.EncodeToString(h.Sum(nil))
}

// Load returns the cached result for key. PageIndex, RawImage and Attempts
// are left for the caller to fill.
func (s *PageStore) Load(ctx context.Context, key string) (domain.PageResult, bool) {
	if s == nil {
		return domain.PageResult{}, false
	}

	data, err := s.client.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("cache read failed")
		}
		return domain.PageResult{}, false
	}

	var page cachedPage
	if err := json.Unmarshal(data, &page); err != nil || page.Status == "" {
		s.logger.Warn().Str("key", key).Msg("discarding corrupt cache entry")
		_ = s.client.Delete(ctx, key)
		return domain.PageResult{}, false
	}

	if page.Elements == nil {
		page.Elements = []domain.Element{}
	}
	return domain.PageResult{
		Status:          page.Status,
		Elements:        page.Elements,
		ErrorDetail:     page.ErrorDetail,
		RotationDegrees: page.RotationDegrees,
		NeedsReview:     page.NeedsReview,
		FinishReason:    page.FinishReason,
	}, true
}

// Save stores a successful or partial result. Failed results are never cached.
func (s *PageStore) Save(ctx context.Context, key string, result domain.PageResult) {
	if s == nil || result.Status == domain.StatusFailed {
		return
	}

	data, err := json.Marshal(cachedPage{
		Status:          result.Status,
		Elements:        result.Elements,
		ErrorDetail:     result.ErrorDetail,
		RotationDegrees: result.RotationDegrees,
		NeedsReview:     result.NeedsReview,
		FinishReason:    result.FinishReason,
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache encode failed")
		return
	}

	if err := s.client.Set(ctx, key, data, s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("cache write failed")
	}
}

// Close releases the underlying client.
func (s *PageStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
