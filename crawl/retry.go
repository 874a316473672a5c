package crawl

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/kbase"
)

// FetchFunc is the signature for a fetch function.
type FetchFunc func(ctx context.Context, url string) (string, error)

// Retryable reports whether a failed fetch may succeed on another attempt.
// Only EUNAVAILABLE errors and attempt timeouts qualify.
func Retryable(err error) bool {
	return kbase.ErrorCode(err) == kbase.EUNAVAILABLE || errors.Is(err, context.DeadlineExceeded)
}

// FetchWithRetryDelays fetches url, retrying retryable failures after each
// delay in turn. With no delays the fetch is attempted exactly once. When
// pace is not nil it is called before every retry, after the delay. Each
// retry is logged at debug level when logger is not nil.
func FetchWithRetryDelays(ctx context.Context, url string, fetch FetchFunc, pace func(context.Context) error, logger *slog.Logger, delays []time.Duration) (string, error) {
	maxAttempts := len(delays) + 1 // 1 initial + N retries

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		html, err := fetch(ctx, url)
		if err == nil {
			return html, nil
		}
		lastErr = err

		// Don't retry after the last attempt
		if attempt >= maxAttempts-1 {
			break
		}

		// Check context before sleeping
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !Retryable(err) {
			break
		}

		if logger != nil {
			logger.Debug("retry fetch", "url", url, "attempt", attempt+2, "error", err)
		}

		timer := time.NewTimer(delays[attempt])
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		if pace != nil {
			if err := pace(ctx); err != nil {
				return "", err
			}
		}
	}

	return "", lastErr
}
