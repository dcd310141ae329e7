// Package fetch is the single gateway for upstream HTTP calls. Every
// request passes the provider's circuit breaker and rate limiter before
// the wire, and retryable statuses back off exponentially.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/equityscope/equityscope/internal/breaker"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// Sentinel errors for the fetch taxonomy.
var (
	// ErrHTTP indicates a non-retryable upstream status.
	ErrHTTP = errors.New("upstream http error")
	// ErrTimeout indicates a per-call deadline was exceeded.
	ErrTimeout = errors.New("upstream call timed out")
	// ErrParse indicates the response body did not decode as expected.
	ErrParse = errors.New("upstream payload parse error")
)

// Retry policy.
const (
	maxAttempts    = 3
	backoffBase    = time.Second
	backoffFactor  = 2
	defaultTimeout = 30 * time.Second
)

// retryableStatus reports whether an HTTP status should be retried.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}

	return false
}

// Client issues rate-limited, breaker-gated HTTP GETs with bounded retry.
type Client struct {
	httpClient *http.Client
	limits     *ratelimit.Registry
	breakers   *breaker.Registry
	logger     *slog.Logger

	// backoff returns the sleep before retry attempt n (1-based). Tests
	// shorten it.
	backoff func(attempt int) time.Duration
}

// Deps holds the injectable collaborators for a Client. Nil fields use
// production defaults.
type Deps struct {
	HTTPClient *http.Client
	Limits     *ratelimit.Registry
	Breakers   *breaker.Registry
	Logger     *slog.Logger
}

// NewClient creates a fetcher from the given deps.
func NewClient(deps Deps) *Client {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	limits := deps.Limits
	if limits == nil {
		limits = ratelimit.NewRegistry()
	}

	breakers := deps.Breakers
	if breakers == nil {
		breakers = breaker.NewRegistry(breaker.DefaultConfig())
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: httpClient,
		limits:     limits,
		breakers:   breakers,
		logger:     logger,
		backoff: func(attempt int) time.Duration {
			d := backoffBase
			for range attempt - 1 {
				d *= backoffFactor
			}

			return d
		},
	}
}

// Breakers exposes the breaker registry for status reporting.
func (c *Client) Breakers() *breaker.Registry { return c.breakers }

// Limits exposes the rate-limit registry for status reporting.
func (c *Client) Limits() *ratelimit.Registry { return c.limits }

// GetJSON fetches url on behalf of provider and decodes the body into a
// generic JSON value.
func (c *Client) GetJSON(ctx context.Context, provider, url string, headers map[string]string) (map[string]any, error) {
	body, err := c.Get(ctx, provider, url, headers)
	if err != nil {
		return nil, err
	}

	var decoded map[string]any

	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, provider, err)
	}

	return decoded, nil
}

// DecodeJSON fetches url and decodes the body into out.
func (c *Client) DecodeJSON(ctx context.Context, provider, url string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, provider, url, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrParse, provider, err)
	}

	return nil
}

// Get fetches url on behalf of provider and returns the raw body.
//
// The breaker is consulted first, then one admission slot is acquired
// from the limiter within a 5-second budget. Retryable statuses back off
// exponentially up to three attempts; non-retryable 4xx fails
// immediately. Breaker success/failure is recorded on the terminal
// outcome only.
func (c *Client) Get(ctx context.Context, provider, url string, headers map[string]string) ([]byte, error) {
	return c.request(ctx, provider, http.MethodGet, url, headers, nil)
}

// Post sends a JSON payload and returns the raw response body. Admission
// control and retry behavior match Get.
func (c *Client) Post(ctx context.Context, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encode payload: %v", ErrParse, provider, err)
	}

	if headers == nil {
		headers = map[string]string{}
	}

	headers["Content-Type"] = "application/json"

	return c.request(ctx, provider, http.MethodPost, url, headers, body)
}

func (c *Client) request(ctx context.Context, provider, method, url string, headers map[string]string, payload []byte) ([]byte, error) {
	if err := c.breakers.CheckOpen(provider); err != nil {
		return nil, err
	}

	if err := c.limits.Acquire(ctx, provider, ratelimit.DefaultAcquireTimeout); err != nil {
		return nil, fmt.Errorf("%w: %s", err, provider)
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, retryable, err := c.do(ctx, method, url, headers, payload)
		if err == nil {
			c.breakers.RecordSuccess(provider)

			return body, nil
		}

		lastErr = err

		if !retryable {
			break
		}

		if attempt < maxAttempts {
			c.logger.Debug("retrying upstream call",
				"provider", provider, "attempt", attempt, "error", err)

			select {
			case <-ctx.Done():
				c.breakers.RecordFailure(provider)

				return nil, fmt.Errorf("%w: %s: %v", ErrTimeout, provider, ctx.Err())
			case <-time.After(c.backoff(attempt)):
			}
		}
	}

	c.breakers.RecordFailure(provider)

	return nil, fmt.Errorf("%s: %w", provider, lastErr)
}

// do performs one HTTP round trip. The second return reports retryability.
func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, payload []byte) ([]byte, bool, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %v", ErrHTTP, err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, false, fmt.Errorf("%w: %v", ErrTimeout, err)
		}

		// Network-level failures are treated as retryable.
		return nil, true, fmt.Errorf("%w: %v", ErrHTTP, err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %v", ErrHTTP, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: status %d", ErrHTTP, resp.StatusCode)

		return nil, retryableStatus(resp.StatusCode), err
	}

	return body, false, nil
}
