// Package storyblok talks to the Storyblok Content Delivery API (v2).
//
// Every request passes through a client-side rate limiter and a circuit
// breaker, and honours the caller's context so an in-flight request is
// aborted as soon as the analysis that issued it is superseded.
package storyblok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public CDN endpoint.
	DefaultBaseURL = "https://api.storyblok.com"

	// PageSize is the number of stories requested per listing page.
	PageSize = 100

	maxBodyBytes = 64 << 20
)

// Client is a Storyblok CDN client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *CircuitBreaker
	logger     *slog.Logger
	perPage    int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithRateLimit limits outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(c *Client) {
		if cb != nil {
			c.breaker = cb
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPageSize overrides PageSize. Tests use it to keep fixtures small.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.perPage = n
		}
	}
}

// NewClient creates a client with sensible defaults: the public CDN, a
// 30 second timeout, 6 requests per second and a 5-failure breaker.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(6), 3),
		logger:     slog.New(slog.DiscardHandler),
		perPage:    PageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = NewCircuitBreakerWithConfig(CircuitBreakerConfig{Logger: c.logger})
	}
	return c
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *CircuitBreaker {
	return c.breaker
}

type response struct {
	header http.Header
	body   []byte
}

// get issues one GET and returns the body of a 2xx response. Any other
// status becomes a *NetworkError naming resource.
func (c *Client) get(ctx context.Context, resource, path string, query url.Values) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("storyblok: rate limiter: %w", err)
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	start := time.Now()
	result, err := c.breaker.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("storyblok: failed to build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("storyblok: request %s: %w", resource, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
			return nil, &NetworkError{Resource: resource, StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("storyblok: read %s: %w", resource, err)
		}
		return &response{header: resp.Header, body: body}, nil
	})
	requestDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(resource, outcome(err)).Inc()

	if err != nil {
		return nil, err
	}
	return result.(*response), nil
}

func outcome(err error) string {
	var netErr *NetworkError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &netErr):
		return "http_error"
	default:
		return "transport_error"
	}
}

func decode(resource string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("storyblok: decode %s: %w", resource, err)
	}
	return nil
}
