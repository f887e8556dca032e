package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/time/rate"

	"github.com/leadforge/outreach-orchestrator/pkg/ratelimit"
)

// RateLimited wraps a langchaingo model so that every call first takes a
// token from the provider's shared bucket, and throttling responses are
// retried with exponential backoff. Each retry consumes a fresh token.
type RateLimited struct {
	model    llms.Model
	limiter  *rate.Limiter
	provider string
	logger   *logrus.Logger
	backoff  func(attempt int) time.Duration
}

// NewRateLimited wraps model with the provider's shared bucket.
func NewRateLimited(model llms.Model, limiter *rate.Limiter, provider string, logger *logrus.Logger) *RateLimited {
	return &RateLimited{
		model:    model,
		limiter:  limiter,
		provider: provider,
		logger:   logger,
		backoff:  ratelimit.BackoffDelay,
	}
}

// GenerateContent implements llms.Model.
func (r *RateLimited) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= ratelimit.MaxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := r.model.GenerateContent(ctx, messages, options...)
		if err == nil {
			return resp, nil
		}
		if !ratelimit.IsThrottle(err) {
			return nil, err
		}

		lastErr = err
		if attempt == ratelimit.MaxRetries {
			break
		}

		delay := r.backoff(attempt)
		r.logger.WithFields(logrus.Fields{
			"provider": r.provider,
			"attempt":  attempt + 1,
			"delay":    delay.String(),
		}).Warn("Provider throttled request, backing off before retry")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, lastErr
}

// Call implements the deprecated llms.Model single-prompt method.
func (r *RateLimited) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, r, prompt, options...)
}
