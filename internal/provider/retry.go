package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// maxRetryAfter caps how long a server-provided Retry-After may stall a call.
const maxRetryAfter = 30 * time.Second

type retryPolicy struct {
	max  int           // extra attempts after the first
	base time.Duration // backoff unit
}

// backoff is the wait before retry number n (1-based): n² × base plus up to
// 50% jitter.
func (p retryPolicy) backoff(n int) time.Duration {
	base := time.Duration(n*n) * p.base
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// retryableError indicates a transient failure that can be retried.
type retryableError struct {
	statusCode int
	body       string
	retryAfter time.Duration // zero when the server gave no hint
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.body)
}

func isRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}

// doWithRetry executes an HTTP request, retrying network failures, 5xx and
// 429. A Retry-After header overrides the computed backoff. The caller's
// generation retry handles everything else.
func doWithRetry(ctx context.Context, client *http.Client, policy retryPolicy, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= policy.max; attempt++ {
		if attempt > 0 {
			wait := policy.backoff(attempt)
			if re, ok := lastErr.(*retryableError); ok && re.retryAfter > 0 {
				wait = re.retryAfter
			}
			logger.Warn("retrying model request", "attempt", attempt+1, "backoff", wait, "err", lastErr)
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = &retryableError{
			statusCode: resp.StatusCode,
			body:       string(body),
			retryAfter: parseRetryAfter(resp.Header),
		}
	}

	return nil, fmt.Errorf("model request failed after %d retries: %w", policy.max, lastErr)
}
