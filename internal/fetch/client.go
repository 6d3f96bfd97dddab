// Package fetch is the HTTP client used for manifests and media segments.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"vimeodl/internal/logger"
)

const (
	DefaultRetries    = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// Client is responsible for all communication with the origin server.
type Client struct {
	httpClient *http.Client
	logger     logger.Logger
	userAgent  string
	retries    int
	retryDelay time.Duration
}

type options struct {
	userAgent  string
	headers    map[string]string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*options)

// WithUserAgent sets the User-Agent header attached to every request.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithHeaders adds extra headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) { o.headers = headers }
}

// WithTimeout bounds each request, including reading its body.
// Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetries sets how many times a failed request is retried and the pause
// between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.retries = n
		o.retryDelay = delay
	}
}

// WithHTTPClient replaces the underlying http.Client. Its transport is
// wrapped so that configured headers still apply.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// NewClient creates a new fetch client.
func NewClient(log logger.Logger, opts ...Option) *Client {
	o := options{
		timeout:    DefaultTimeout,
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var hc http.Client
	if o.httpClient != nil {
		hc = *o.httpClient
	} else {
		hc.Timeout = o.timeout
	}
	hc.Transport = &HeaderTransport{
		Headers: o.headers,
		Base:    hc.Transport,
	}

	return &Client{
		httpClient: &hc,
		logger:     log,
		userAgent:  o.userAgent,
		retries:    o.retries,
		retryDelay: o.retryDelay,
	}
}

// FetchManifest fetches the manifest document at rawURL and returns its bytes.
func (c *Client) FetchManifest(ctx context.Context, rawURL string) ([]byte, error) {
	c.logger.Debugf("Fetching manifest from URL: %s", rawURL)

	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest response body: %w", err)
	}

	c.logger.Debugf("Fetched manifest (%d bytes) from %s", len(data), rawURL)
	return data, nil
}

// FetchRange opens the body of a single media segment. The caller must close it.
func (c *Client) FetchRange(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	return c.Get(ctx, u.String())
}

// Get issues a GET request and returns the response body of a 2xx response.
// Non-2xx responses fail with *HTTPError. Transport errors, 429 and 5xx are
// retried up to the configured count.
func (c *Client) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warnf("Retrying %s (attempt %d/%d) after: %v", rawURL, attempt+1, c.retries+1, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		body, err := c.do(req)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retryable(ctx, err) {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) do(req *http.Request) (io.ReadCloser, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", req.URL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        req.URL.String(),
		}
	}

	return resp.Body, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}
