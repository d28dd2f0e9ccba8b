// Package apiclient is the rate limited, retrying HTTP transport shared by
// the source and target adapters.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrRetriesExhausted wraps the last failure once every attempt was used.
var ErrRetriesExhausted = errors.New("retries exhausted")

type Options struct {
	HTTPClient *http.Client
	// RequestsPerSecond of zero disables rate limiting.
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	Logger            *slog.Logger
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}

		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{
		httpClient: httpClient,
		limiter:    limiter,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		logger:     logger,
	}
}

// Do sends the request built by newRequest, retrying transport errors, 429
// and 5xx responses. newRequest is called once per attempt so bodies can be
// replayed. Non-retryable responses are returned without error.
func (c *Client) Do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) (*Response, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			err := c.limiter.Wait(ctx)
			if err != nil {
				return nil, err
			}
		}

		req, err := newRequest(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt >= c.maxRetries || ctx.Err() != nil {
				break
			}

			c.logger.DebugContext(ctx, "Request failed, retrying", "url", req.URL.Path, "attempt", attempt+1, "error", err)

			err = sleepContext(ctx, c.retryDelay(attempt+1, ""))
			if err != nil {
				return nil, err
			}

			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			return nil, readErr
		}

		response := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}

		if !retryable(resp.StatusCode) {
			return response, nil
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
		if attempt >= c.maxRetries {
			break
		}

		c.logger.DebugContext(ctx, "Request throttled, retrying",
			"url", req.URL.Path,
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"retry_after", resp.Header.Get("Retry-After"),
		)

		err = sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After")))
		if err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.maxRetries+1, lastErr)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		return min(retryAfter, c.maxDelay)
	}

	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}

	return min(delay, c.maxDelay)
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}

	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
