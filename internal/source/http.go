package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig tunes the HTTP upload source. Zero values get defaults:
// 60s timeout, 3 retries, 200ms initial backoff capped at 5s.
type HTTPConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport is an optional custom RoundTripper, mainly for tests.
	Transport http.RoundTripper
}

// HTTP fetches an upload from a URL with retry and exponential backoff on
// transient failures (transport errors, 429, 5xx).
type HTTP struct {
	url            string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewHTTP returns a Source that GETs url on Open.
func NewHTTP(url string, cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &HTTP{
		url: url,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

func (h *HTTP) Name() string { return h.url }

// Open issues the GET, retrying transient failures, and returns the response
// body stream. A non-2xx final status is an error.
func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	attempts := h.maxRetries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := h.client.Do(req)
		switch {
		case err != nil:
			// Transport-level failure, retryable.
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil
		case retryableStatus(resp.StatusCode):
			resp.Body.Close()
			lastErr = fmt.Errorf("transient status %d from %s", resp.StatusCode, h.url)
		default:
			resp.Body.Close()
			return nil, fmt.Errorf("fetch %s: status %d", h.url, resp.StatusCode)
		}

		if attempt+1 >= attempts {
			break
		}
		if err := sleepWithContext(ctx, backoff(h.initialBackoff, attempt, h.maxBackoff)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch %s: %w", h.url, lastErr)
}

// retryableStatus is intentionally conservative: 429 and 5xx are transient,
// everything else is final.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff doubles per retry, clamped to max.
func backoff(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial << attempt
	if d > max || d <= 0 {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
