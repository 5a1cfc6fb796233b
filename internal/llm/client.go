package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/spherical/bbox-ocr/internal/domain"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// placeholder sent when no key is configured; local vLLM servers ignore it
const anonymousKey = "EMPTY"

// ClientConfig configures the inference endpoint.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	RateLimit  float64 // requests per second, 0 disables
	RateBurst  int
	HTTPClient *http.Client
}

// Client talks to an OpenAI compatible chat completions endpoint.
// Each Send performs exactly one HTTP call.
type Client struct {
	completions openai.ChatCompletionService
	limiter     *rate.Limiter
	logger      *observability.Logger
}

// NewClient creates an inference client.
func NewClient(cfg ClientConfig, logger *observability.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	key := cfg.APIKey
	if key == "" {
		key = anonymousKey
	}

	options := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/") + "/"),
		option.WithHTTPClient(httpClient),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}

	c := &Client{
		completions: openai.NewChatCompletionService(options...),
		logger:      observability.OrNop(logger).WithOperation("inference"),
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return c
}

// Send performs one inference call bounded by timeout. Failures are
// returned as *domain.TransportError.
func (c *Client) Send(ctx context.Context, req *domain.InferenceRequest, timeout time.Duration) (*domain.RawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, domain.CancelledError(ctx.Err())
			}
			return nil, domain.ConnectionError("rate limiter", err)
		}
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	completion, err := c.completions.New(callCtx, toParams(req))
	elapsed := time.Since(start)

	if err != nil {
		terr := classify(ctx, err, timeout)
		c.logger.Debug().Str("kind", string(terr.Kind)).Int("status", terr.StatusCode).Dur("elapsed", elapsed).Msg("inference call failed")
		return nil, terr
	}

	resp := &domain.RawResponse{
		Model:            completion.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}
	if len(completion.Choices) > 0 {
		choice := completion.Choices[0]
		resp.Content = choice.Message.Content
		resp.FinishReason = string(choice.FinishReason)
	}

	c.logger.Debug().
		Str("finish_reason", resp.FinishReason).
		Int64("completion_tokens", resp.CompletionTokens).
		Dur("elapsed", elapsed).
		Msg("inference call complete")

	return resp, nil
}

func toParams(req *domain.InferenceRequest) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: req.ImageDataURL,
				}),
				openai.TextContentPart(req.UserPrompt),
			}),
		},
		MaxTokens:   openai.Int(int64(req.MaxTokens)),
		Temperature: openai.Float(req.Temperature),
	}
}

// classify maps an SDK or network error onto a transport error kind.
// parent is the caller's context, used to tell cancellation from timeout.
func classify(parent context.Context, err error, timeout time.Duration) *domain.TransportError {
	if parent.Err() != nil {
		return domain.CancelledError(parent.Err())
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.AuthError(apierr.StatusCode, "endpoint rejected credentials", err)
		default:
			return domain.HTTPStatusError(apierr.StatusCode, http.StatusText(apierr.StatusCode), err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.TimeoutError(fmt.Sprintf("inference call exceeded %s", timeout), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.TimeoutError(fmt.Sprintf("inference call exceeded %s", timeout), err)
	}

	if errors.Is(err, context.Canceled) {
		return domain.CancelledError(err)
	}

	return domain.ConnectionError("endpoint unreachable", err)
}
