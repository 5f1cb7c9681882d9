package catalog

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

	"github.com/abgdnv/inventory-console/pkg/client/resilience"
	"github.com/abgdnv/inventory-console/pkg/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	loginPath    = "/api/auth/login"
	registerPath = "/api/auth/register"
	productsPath = "/api/products"

	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 << 10
)

// TokenSource supplies the bearer token attached to product calls. An empty token sends no header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

// Client is the single gateway to the remote catalog API. It is safe for concurrent use;
// per-session copies made with WithTokenSource share the transport, breaker and metrics.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	metrics *metrics
	logger  *slog.Logger
}

type Option func(*options)

type options struct {
	transport http.RoundTripper
}

// WithTransport replaces the base transport under the breaker and tracing layers.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// New builds a client for the API at cfg.BaseURL. Calls are traced with otelhttp and guarded by a circuit breaker.
func New(cfg config.APIConfig, cb config.CircuitBreakerConfig, logger *slog.Logger, opts ...Option) (*Client, error) {
	o := options{transport: http.DefaultTransport}
	for _, opt := range opts {
		opt(&o)
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create API metrics: %w", err)
	}
	breaker := resilience.NewCircuitBreaker("catalog-api", cb)
	transport := otelhttp.NewTransport(resilience.NewBreakerTransport(o.transport, breaker))
	return &Client{
		baseURL: base,
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		tokens:  TokenFunc(func() string { return "" }),
		metrics: m,
		logger:  logger,
	}, nil
}

// WithTokenSource returns a copy of the client that authorizes product calls with ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string, authorize bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if authorize {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// do sends req and returns the response with its body still open. Transport failures come back as *TransportError.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	return resp, nil
}

// errorBody is the error envelope the API uses; either field may be set.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// apiError drains resp and builds the error for an unexpected status.
func apiError(op string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Op: op, Status: resp.StatusCode, Message: msg, Reason: body.Error}
}

func decodeBody(op string, resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

func (c *Client) observe(ctx context.Context, op string, started time.Time, err error) {
	c.metrics.record(ctx, op, started, err)
	if err != nil {
		c.logger.WarnContext(ctx, "remote API call failed", "operation", op, "error", err)
		return
	}
	c.logger.DebugContext(ctx, "remote API call", "operation", op, "duration", time.Since(started))
}

// Ping checks that the API answers at all. Any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, "", false)
	if err != nil {
		return err
	}
	resp, err := c.do("ping", req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	if resp.StatusCode >= http.StatusInternalServerError {
		return apiError("ping", resp)
	}
	return nil
}
