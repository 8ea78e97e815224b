// Package api is the client for the remote storefront REST API.
//
// Every call carries the current session token. A 401 from any endpoint is
// reported to the bound Authenticator before the error is returned, so the
// session can be dropped no matter which component made the call.
package api

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

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Authenticator supplies the bearer token and is told when the server
// rejected it.
type Authenticator interface {
	Token() string
	Expire(ctx context.Context, token string)
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker[*http.Response]
	auth    Authenticator
	metrics *metrics.Metrics
	log     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker replaces the default circuit breaker settings. Only network
// errors and 5xx responses count as failures.
func WithBreaker(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker[*http.Response](st) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: 30 * time.Second,
		auth:    anonymous{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{Name: "storefront-api"})
	}
	return c
}

// Bind attaches the session that owns the bearer token.
func (c *Client) Bind(auth Authenticator) {
	if auth == nil {
		auth = anonymous{}
	}
	c.auth = auth
}

type anonymous struct{}

func (anonymous) Token() string { return "" }

func (anonymous) Expire(context.Context, string) {}

var errServerFailure = errors.New("server failure")

type errorBody struct {
	Message string `json:"message"`
}

type header struct {
	key, value string
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, headers ...header) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		if h.value != "" {
			req.Header.Set(h.key, h.value)
		}
	}
	token := c.auth.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerFailure
		}
		return resp, nil
	})
	if err != nil && !errors.Is(err, errServerFailure) {
		c.metrics.APIRequest(ctx, method, 0, time.Since(start))
		c.log.WarnContext(ctx, "api request failed", "op", op, "error", err)
		return &apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.APIRequest(ctx, method, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apperr.APIError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Message = eb.Message
		}
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.log.InfoContext(ctx, "session token rejected", "op", op)
			c.auth.Expire(ctx, token)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
