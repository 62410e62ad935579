package llm

import (
	"context"
	"sync"
	"time"
)

// RateLimitConfig configures request throttling for LLM providers.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of API calls per minute (0 = unlimited)
	RequestsPerMinute int
}

// RateLimitProvider wraps a provider with a simple sliding-window request
// limiter. Policy corpora can run to hundreds of statements, which makes
// batch ingestion easy to push past free-tier quotas.
type RateLimitProvider struct {
	inner  Provider
	config *RateLimitConfig

	mu          sync.Mutex
	windowStart time.Time
	requests    int
}

// NewRateLimitProvider wraps an existing provider with rate limiting.
func NewRateLimitProvider(inner Provider, config *RateLimitConfig) *RateLimitProvider {
	if config == nil {
		config = &RateLimitConfig{}
	}
	return &RateLimitProvider{inner: inner, config: config}
}

// Name returns the underlying provider name.
func (r *RateLimitProvider) Name() string {
	return r.inner.Name()
}

func (r *RateLimitProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

func (r *RateLimitProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.acquire(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

// acquire blocks until a request slot is available in the current one-minute
// window, or the context is cancelled.
func (r *RateLimitProvider) acquire(ctx context.Context) error {
	if r.config.RequestsPerMinute <= 0 {
		return nil
	}

	for {
		r.mu.Lock()
		now := time.Now()
		if r.windowStart.IsZero() || now.Sub(r.windowStart) >= time.Minute {
			r.windowStart = now
			r.requests = 0
		}
		if r.requests < r.config.RequestsPerMinute {
			r.requests++
			r.mu.Unlock()
			return nil
		}
		wait := time.Minute - now.Sub(r.windowStart)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
