package provider

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	defaultMaxRetries = 3
	baseDelay         = 2 * time.Second
	maxDelay          = 30 * time.Second
	jitterPercent     = 30 // ±30% jitter
)

// Retrying wraps a Provider and retries transient failures (rate limits,
// overload, 5xx, network) with exponential backoff.
type Retrying struct {
	Provider
	MaxRetries int
	Logger     *slog.Logger

	// delay overrides retryDelay in tests.
	delay func(attempt int) time.Duration
}

// WithRetry wraps p. maxRetries < 0 selects the default of 3; 0 disables
// retries.
func WithRetry(p Provider, maxRetries int, logger *slog.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{Provider: p, MaxRetries: maxRetries, Logger: logger, delay: retryDelay}
}

func (r *Retrying) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		resp, err := r.Provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == r.MaxRetries || !isRetryableError(err) {
			break
		}

		d := r.delay(attempt)
		r.Logger.Warn("provider call failed, retrying",
			"provider", r.Provider.Name(),
			"attempt", attempt+1,
			"max", r.MaxRetries,
			"delay", d.Round(time.Millisecond),
			"err", truncateError(err))
		if err := sleepWithContext(ctx, d); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// isRetryableError checks if an error is worth retrying (rate limit, server error, network).
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyRequest) {
		return false
	}
	msg := err.Error()

	// Rate limit (429)
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return true
	}
	// Anthropic overloaded (529)
	if strings.Contains(msg, "529") || strings.Contains(msg, "overloaded") {
		return true
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "temporary failure")
}

// retryDelay returns the delay for attempt n (0-indexed) with jitter.
func retryDelay(attempt int) time.Duration {
	delay := baseDelay
	for range attempt {
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.IntN(int(delay)*jitterPercent*2/100)) - time.Duration(int(delay)*jitterPercent/100)
	return delay + jitter
}

// sleepWithContext sleeps for d, but returns early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncateError(err error) string {
	s := err.Error()
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
