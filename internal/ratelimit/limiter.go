// Package ratelimit implements provider API rate limiting based on response headers
// and per-client limits for the public callback endpoint.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bucket represents a rate limit bucket for a provider API endpoint
type Bucket struct {
	Remaining int           // Requests remaining in current window
	Limit     int           // Total requests allowed per window
	ResetAt   time.Time     // When the rate limit resets
	limiter   *rate.Limiter // Token bucket rate limiter
	mu        sync.Mutex
}

// RateLimiter manages rate limits for provider API endpoints
type RateLimiter struct {
	buckets map[string]*Bucket // endpoint -> bucket
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*Bucket),
		logger:  logger,
	}
}

// getBucket retrieves or creates a bucket for an endpoint
func (rl *RateLimiter) getBucket(endpoint string) *Bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, exists := rl.buckets[endpoint]; exists {
		return bucket
	}

	// 5 requests per second until the provider tells us otherwise
	bucket := &Bucket{
		Remaining: 5,
		Limit:     5,
		ResetAt:   time.Now().Add(1 * time.Second),
		limiter:   rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
	}

	rl.buckets[endpoint] = bucket
	return bucket
}

// Wait blocks until a request to endpoint is allowed or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	var waitDuration time.Duration
	if bucket.Remaining <= 0 && time.Now().Before(bucket.ResetAt) {
		waitDuration = time.Until(bucket.ResetAt)
	}
	limiter := bucket.limiter
	bucket.mu.Unlock()

	if waitDuration > 0 {
		rl.logger.Warn("rate limit exhausted, waiting",
			zap.String("endpoint", endpoint),
			zap.Duration("wait_duration", waitDuration),
		)
		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limiter wait cancelled: %w", ctx.Err())
		}
	}

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	return nil
}

// UpdateFromHeaders updates a bucket from provider response headers
func (rl *RateLimiter) UpdateFromHeaders(endpoint string, headers http.Header) {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	if remaining := headers.Get("X-RateLimit-Remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			bucket.Remaining = val
		}
	}

	if limit := headers.Get("X-RateLimit-Limit"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			bucket.Limit = val
		}
	}

	// X-RateLimit-Reset is either RFC3339 or a unix timestamp
	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if t, err := time.Parse(time.RFC3339, reset); err == nil {
			bucket.ResetAt = t
		} else if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			bucket.ResetAt = time.Unix(val, 0)
		}
	}

	if bucket.Limit > 0 {
		resetDuration := time.Until(bucket.ResetAt)
		if resetDuration > 0 {
			tokensPerSecond := float64(bucket.Limit) / resetDuration.Seconds()
			bucket.limiter = rate.NewLimiter(rate.Limit(tokensPerSecond), bucket.Limit)
		}
	}

	rl.logger.Debug("updated rate limit from headers",
		zap.String("endpoint", endpoint),
		zap.Int("remaining", bucket.Remaining),
		zap.Int("limit", bucket.Limit),
		zap.Time("reset_at", bucket.ResetAt),
	)
}

// HandleRateLimitResponse handles a 429 (rate limited) response
func (rl *RateLimiter) HandleRateLimitResponse(endpoint string, headers http.Header) error {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	// Retry-After is in seconds
	var retryAfter time.Duration
	if retry := headers.Get("Retry-After"); retry != "" {
		if seconds, err := strconv.Atoi(retry); err == nil {
			retryAfter = time.Duration(seconds) * time.Second
		}
	}

	if retryAfter == 0 {
		if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
			if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
				retryAfter = time.Until(time.Unix(val, 0))
			}
		}
	}

	if retryAfter <= 0 {
		retryAfter = 1 * time.Second
	}

	bucket.Remaining = 0
	bucket.ResetAt = time.Now().Add(retryAfter)

	rl.logger.Warn("rate limited by provider API",
		zap.String("endpoint", endpoint),
		zap.Duration("retry_after", retryAfter),
	)

	return fmt.Errorf("rate limited, retry after %v", retryAfter)
}

// GetStatus returns the current rate limit status for an endpoint
func (rl *RateLimiter) GetStatus(endpoint string) (remaining int, limit int, resetAt time.Time) {
	bucket := rl.getBucket(endpoint)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	return bucket.Remaining, bucket.Limit, bucket.ResetAt
}
