package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"pumpfun-sentinel/internal/retry"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMaxDelay   = 10 * time.Second
	DefaultPageLimit  = 100
)

// StatusError is a non-2xx response from the feed.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed returned HTTP %d: %s", e.Code, e.Body)
}

// Transient reports whether the status warrants a retry.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsTransient classifies a fetch error: network/timeout failures and
// retryable HTTP statuses are transient, everything else is permanent.
func IsTransient(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	// Transport-level failures (dial, reset, timeout) arrive as
	// url.Error or plain net errors.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Client fetches newly launched tokens from the aggregator feed with
// cursor-based paging.
type Client struct {
	endpoint   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	pageLimit  int
	apiKey     string
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts per fetch.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithPageLimit sets the page size requested from the feed.
func WithPageLimit(n int) ClientOption {
	return func(c *Client) {
		c.pageLimit = n
	}
}

// WithAPIKey sets the feed API key header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new feed client for the given endpoint.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		pageLimit:  DefaultPageLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchNewTokens returns tokens published since cursor, in feed order,
// plus the cursor to resume from. An empty cursor asks for the newest
// page. Transient failures are retried with exponential backoff up to
// the configured attempt count before the error is returned.
func (c *Client) FetchNewTokens(ctx context.Context, cursor string) ([]RawToken, string, error) {
	var resp fetchResponse

	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: c.maxRetries,
		BaseDelay:   c.retryDelay,
		MaxDelay:    c.maxDelay,
		Classify: func(err error) retry.Class {
			if IsTransient(err) {
				return retry.Retryable
			}
			return retry.Fatal
		},
	}, func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = c.fetchPage(ctx, cursor)
		return fetchErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetch new tokens: %w", err)
	}

	next := resp.NextCursor
	if next == "" {
		next = cursor
	}
	return resp.Tokens, next, nil
}

// fetchPage performs a single paged GET against the feed.
func (c *Client) fetchPage(ctx context.Context, cursor string) (fetchResponse, error) {
	var out fetchResponse

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return out, fmt.Errorf("parse feed endpoint: %w", err)
	}
	q := u.Query()
	q.Set("limit", fmt.Sprintf("%d", c.pageLimit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return out, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	httpResp, err := c.client.Do(req)
	if err != nil {
		return out, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return out, fmt.Errorf("read feed response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return out, &StatusError{Code: httpResp.StatusCode, Body: truncate(string(body), 256)}
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode feed response: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
