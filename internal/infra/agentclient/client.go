// Package agentclient posts chat turns to agent HTTP endpoints.
package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agentchat/internal/infra/httpclient"
	"agentchat/internal/observability"
	apperrors "agentchat/internal/shared/errors"
	"agentchat/internal/shared/logging"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 4 << 20
	maxErrorBodyBytes       = 512
)

// Request is one outbound agent call.
type Request struct {
	AgentID string
	URL     string
	Headers map[string]string
	Body    map[string]any
}

// Response is a successful agent reply.
type Response struct {
	StatusCode int
	Body       []byte
	// URL is the endpoint that answered, which differs from the request URL
	// after a host fallback.
	URL      string
	FellBack bool
}

// Caller is the contract used by the conversation service.
type Caller interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Client is an agent endpoint client with a single alternate-host fallback
// for certificate and connection failures.
type Client struct {
	http             *http.Client
	logger           logging.Logger
	metrics          *observability.MetricsCollector
	tracer           *observability.TracerProvider
	maxResponseBytes int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// WithMetrics records call latency and fallbacks.
func WithMetrics(metrics *observability.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithTracer wraps every call in a span.
func WithTracer(tracer *observability.TracerProvider) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithMaxResponseBytes bounds the response body size.
func WithMaxResponseBytes(limit int64) Option {
	return func(c *Client) {
		if limit > 0 {
			c.maxResponseBytes = limit
		}
	}
}

// New constructs a client. timeout applies to each attempt.
func New(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		logger:           logging.NewComponentLogger("AgentClient"),
		maxResponseBytes: defaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpclient.New(timeout, c.logger)
	}
	return c
}

// Call posts the request body as JSON. A failure classified as certificate
// or connection is retried exactly once against AlternateURL; every other
// failure, and a failed retry, is returned as is.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return Response{}, fmt.Errorf("encode agent request: %w", err)
	}

	resp, err := c.post(ctx, req, req.URL, payload, false)
	if err == nil {
		return resp, nil
	}
	code := apperrors.CodeOf(err)
	if !code.AllowsHostFallback() {
		return Response{}, err
	}
	alternate, ok := AlternateURL(req.URL)
	if !ok {
		return Response{}, err
	}

	c.metrics.RecordFallback(ctx, string(code))
	c.logger.Warn("Agent %s call to %s failed (%s); retrying once via %s", req.AgentID, req.URL, code, alternate)
	resp, retryErr := c.post(ctx, req, alternate, payload, true)
	if retryErr != nil {
		return Response{}, retryErr
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, req Request, target string, payload []byte, fallback bool) (resp Response, err error) {
	ctx, span := c.tracer.StartSpan(ctx, observability.SpanAgentCall,
		attribute.String(observability.AttrAgentID, req.AgentID),
		attribute.String(observability.AttrURL, target),
		attribute.Bool(observability.AttrFallback, fallback),
	)
	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = string(apperrors.CodeOf(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		span.SetAttributes(attribute.String(observability.AttrStatus, status))
		span.End()
		c.metrics.RecordAgentCall(ctx, req.AgentID, status, time.Since(started))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build agent request: %w", err)
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, apperrors.NewTransportError(http.MethodPost, target, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := httpclient.ReadAllWithLimit(httpResp.Body, maxErrorBodyBytes)
		return Response{}, &apperrors.StatusError{
			StatusCode: httpResp.StatusCode,
			URL:        target,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	body, err := httpclient.ReadAllWithLimit(httpResp.Body, c.maxResponseBytes)
	if err != nil {
		if httpclient.IsResponseTooLarge(err) {
			return Response{}, apperrors.NewPermanentError(err, "agent response too large")
		}
		return Response{}, apperrors.NewTransientError(apperrors.NewTransportError("read", target, err), "agent response interrupted")
	}
	return Response{StatusCode: httpResp.StatusCode, Body: body, URL: target, FellBack: fallback}, nil
}

// AlternateURL returns the fallback form of raw: localhost and 127.0.0.1 are
// swapped for loopback hosts, otherwise the scheme flips between https and
// http. ok is false when raw cannot be parsed.
func AlternateURL(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return "", false
	}
	host := parsed.Hostname()
	port := parsed.Port()
	switch {
	case strings.EqualFold(host, "localhost"):
		parsed.Host = joinHost("127.0.0.1", port)
	case httpclient.IsLoopbackHost(host):
		parsed.Host = joinHost("localhost", port)
	case strings.EqualFold(parsed.Scheme, "https"):
		parsed.Scheme = "http"
	case strings.EqualFold(parsed.Scheme, "http"):
		parsed.Scheme = "https"
	default:
		return "", false
	}
	return parsed.String(), true
}

func joinHost(host, port string) string {
	if port == "" {
		return host
	}
	if _, err := strconv.Atoi(port); err != nil {
		return host
	}
	return net.JoinHostPort(host, port)
}

var _ Caller = (*Client)(nil)
