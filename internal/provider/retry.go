package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

const maxRetries = 3

// retryBaseDelay scales the quadratic backoff; tests shrink it.
var retryBaseDelay = time.Second

// retryableError is a 5xx or 429 reply from a model server.
type retryableError struct {
	statusCode int
	body       string
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.statusCode, e.body)
}

func transientStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

// backoffFor returns attempt² × retryBaseDelay plus up to half of that as jitter.
func backoffFor(attempt int) time.Duration {
	base := time.Duration(attempt*attempt) * retryBaseDelay
	return base + time.Duration(rand.Int64N(int64(base/2+1)))
}

// postJSON sends body to url, retrying network failures and transient
// statuses up to maxRetries times. Any other status is returned to the caller
// with its body unread.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, logger *slog.Logger) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffFor(attempt)
			logger.Warn("retrying model request", "url", url, "attempt", attempt+1, "backoff", wait, "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !transientStatus(resp.StatusCode) {
			return resp, nil
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		lastErr = &retryableError{statusCode: resp.StatusCode, body: string(msg)}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxRetries+1, lastErr)
}
