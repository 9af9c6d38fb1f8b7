// Package httpclient is the rate-limited, retrying HTTP client shared by the price providers.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	maxRetries uint64
	retryWait  time.Duration
}

// Options holds options for creating a new Client
type Options struct {
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	MaxRetries     int
	RetryWait      time.Duration
}

// New creates a new HTTP client with rate limiting
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryWait == 0 {
		opts.RetryWait = 200 * time.Millisecond
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		maxRetries: uint64(opts.MaxRetries),
		retryWait:  opts.RetryWait,
	}
}

// Default returns a client with a 10 second timeout and two retries.
func Default() *Client {
	return New(Options{MaxRetries: 2})
}

// GetJSON issues a GET request and decodes a 200 response body into out.
// Network errors, 429 and 5xx responses are retried; other statuses fail at once.
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{StatusCode: resp.StatusCode}
			if statusErr.Retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait
	policy.MaxElapsedTime = c.HTTPClient.Timeout

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, c.maxRetries), ctx))
}

// StatusError represents an error due to a non-200 HTTP status code
type StatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
