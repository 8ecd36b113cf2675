package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jsamuelsen11/cascade/internal/platform/logging"
)

// jitterFraction is the maximum jitter as a fraction of the delay (±25%).
const jitterFraction = 0.25

// doWithRetry sends req up to maxAttempts times with jittered exponential
// backoff between attempts. The request body is buffered for replay and the
// response body never is. When the last attempt still gets a retryable
// status, that reply comes back unread alongside the error.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.retry.maxAttempts <= 0 {
		return nil, fmt.Errorf("httpclient: maxAttempts must be >= 1, got %d", c.retry.maxAttempts)
	}

	rewind, err := replayable(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range c.retry.maxAttempts {
		if attempt > 0 {
			if err := c.waitForRetry(ctx, req, attempt, lastErr); err != nil {
				return nil, err
			}
		}
		rewind()

		resp, err := c.http.Do(req)
		switch {
		case err != nil && !isRetryable(err):
			return nil, err
		case err != nil:
			lastErr = err
			continue
		case !isRetryableStatus(resp.StatusCode):
			return resp, nil
		}

		lastErr = fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.name)
		if attempt == c.retry.maxAttempts-1 {
			return resp, lastErr
		}
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
	return nil, lastErr
}

// replayable reads req's body into memory and returns a func that resets
// req.Body to a fresh reader over it before each attempt.
func replayable(req *http.Request) (func(), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return func() {}, nil
	}

	buf, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	return func() {
		req.Body = io.NopCloser(bytes.NewReader(buf))
		req.ContentLength = int64(len(buf))
	}, nil
}

// waitForRetry logs the upcoming attempt and sleeps for its backoff, or
// until ctx is done.
func (c *Client) waitForRetry(ctx context.Context, req *http.Request, attempt int, lastErr error) error {
	delay := backoff(attempt, c.retry)

	logging.FromContext(ctx).WarnContext(ctx, "retrying upstream request",
		slog.String("operation", "httpclient.Do"),
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.String("peer_service", c.name),
		slog.Int("attempt", attempt+1),
		slog.Int("max_attempts", c.retry.maxAttempts),
		slog.Duration("backoff", delay),
		slog.Any("error", lastErr),
	)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff is the delay before retry number attempt (1 is the first retry):
// initialInterval grown by multiplier per retry, capped at maxInterval, then
// spread by up to jitterFraction either way.
func backoff(attempt int, p retryPolicy) time.Duration {
	base := float64(p.initialInterval) * math.Pow(p.multiplier, float64(attempt-1))
	base = math.Min(base, float64(p.maxInterval))

	spread := base * jitterFraction * (2*rand.Float64() - 1) //nolint:gosec // jitter only
	return time.Duration(math.Max(base+spread, 0))
}

// isRetryable reports whether a transport error is worth another attempt.
// Anything but context cancellation or expiry is.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// isRetryableStatus reports 429 and every 5xx.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
