package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limit describes one provider's token bucket: a sustained request rate
// with room for short bursts.
type Limit struct {
	RequestsPerSecond float64
	Burst             int
}

// Registry owns one token bucket per upstream provider. All clients
// talking to the same provider share the same bucket, so the process-wide
// outbound rate stays bounded no matter how many workers are running.
// The registry is injected into client constructors; there is no global.
type Registry struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string]*rate.Limiter
	logger  *logrus.Logger
}

// NewRegistry creates a registry with per-provider limits. Providers not
// present in limits are unthrottled.
func NewRegistry(logger *logrus.Logger, limits map[string]Limit) *Registry {
	if limits == nil {
		limits = make(map[string]Limit)
	}
	return &Registry{
		limits:  limits,
		buckets: make(map[string]*rate.Limiter),
		logger:  logger,
	}
}

// Limiter returns the shared bucket for a provider, creating it on first
// use. The bucket lives for the rest of the process.
func (r *Registry) Limiter(provider string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.buckets[provider]; ok {
		return limiter
	}

	limit, ok := r.limits[provider]
	if !ok || limit.RequestsPerSecond <= 0 {
		r.logger.WithField("provider", provider).Debug("No rate limit configured, provider unthrottled")
		limiter := rate.NewLimiter(rate.Inf, 1)
		r.buckets[provider] = limiter
		return limiter
	}

	burst := limit.Burst
	if burst < 1 {
		burst = 1
	}

	r.logger.WithFields(logrus.Fields{
		"provider":            provider,
		"requests_per_second": limit.RequestsPerSecond,
		"burst":               burst,
	}).Debug("Created provider rate limiter")

	limiter := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), burst)
	r.buckets[provider] = limiter
	return limiter
}

// Acquire consumes one token from the provider's bucket, sleeping until
// one is available. One token is consumed per logical request attempt, so
// retried requests pay for every retry.
func (r *Registry) Acquire(ctx context.Context, provider string) error {
	if err := r.Limiter(provider).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

const (
	// MaxRetries bounds throttle retries per request: 1 initial attempt
	// plus MaxRetries retried attempts.
	MaxRetries = 3
	// BaseDelay is the first backoff step; subsequent steps double it
	// (2s, 4s, 8s).
	BaseDelay = 2 * time.Second
)

var throttleKeywords = []string{
	"429",
	"rate limit",
	"too many requests",
}

// IsThrottle reports whether an error looks like a provider throttling
// response. Matching is by message content since providers surface 429s
// through several client layers.
func IsThrottle(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, keyword := range throttleKeywords {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// BackoffDelay returns the exponential backoff delay for a zero-based
// retry attempt.
func BackoffDelay(attempt int) time.Duration {
	return BaseDelay * (1 << attempt)
}
