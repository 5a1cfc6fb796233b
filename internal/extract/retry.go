package extract

import (
	"context"
	"math"
	"sync/atomic"
	"time"
)

const (
	defaultMaxRetries  = 2
	defaultRetryBudget = 16
	initialBackoff     = 500 * time.Millisecond
	maxBackoff         = 10 * time.Second
)

// RetryConfig bounds retries of transient transport failures.
type RetryConfig struct {
	// MaxRetries is the per-page limit on extra attempts
	MaxRetries int
	// Budget is the per-document limit on extra attempts across all pages
	Budget         int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		Budget:         defaultRetryBudget,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	// initialBackoff * 2^attempt
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))

	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryBudget is a document-wide pool of retry attempts shared by all workers.
type retryBudget struct {
	remaining atomic.Int64
}

func newRetryBudget(n int) *retryBudget {
	b := &retryBudget{}
	b.remaining.Store(int64(n))
	return b
}

// take consumes one retry. It reports false once the pool is empty.
func (b *retryBudget) take() bool {
	for {
		cur := b.remaining.Load()
		if cur <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (b *retryBudget) left() int {
	return int(b.remaining.Load())
}
