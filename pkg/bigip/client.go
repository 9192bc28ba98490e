// Package bigip is a client for the iControl REST management API of a
// BIG-IP device.
package bigip

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/netonboard/netonboard/pkg/engine"
	"github.com/netonboard/netonboard/pkg/telemetry"
)

const (
	// apiPrefix is prepended to every resource path.
	apiPrefix = "/mgmt"

	// coordinationHeader ties a request to an open transaction.
	coordinationHeader = "X-F5-REST-Coordination-Id"
)

// DialContextFunc opens the TCP connection to the device.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client talks to one device. It is safe for concurrent use.
type Client struct {
	config  *Config
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *telemetry.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

var _ engine.RemoteClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The dialer option is ignored when
// this is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL overrides the scheme and address derived from the config.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithLogger sets the logger.
func WithLogger(l *telemetry.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// NewClient creates a client for the device described by cfg. A non-nil
// dial routes connections through it, e.g. an SSH tunnel.
func NewClient(cfg *Config, dial DialContextFunc, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device config: %w", err)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // devices ship self-signed certificates
		},
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	if dial != nil {
		transport.DialContext = dial
		transport.Proxy = nil
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		config:  cfg,
		baseURL: "https://" + cfg.Address(),
		http:    &http.Client{Transport: transport, Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.RateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = telemetry.NopLogger()
	}
	c.logger = c.logger.NewComponentLogger("bigip").WithDevice(cfg.Host, cfg.Port)

	return c, nil
}

// List returns the raw "items" member of the collection at path. A response
// without items yields a nil payload.
func (c *Client) List(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var collection struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return collection.Items, nil
}

// Get returns the raw body of the object at path.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Create posts body to the collection at path.
func (c *Client) Create(ctx context.Context, path string, body interface{}) error {
	_, err := c.do(ctx, http.MethodPost, path, body, nil)
	return err
}

// Modify patches the object at path with body.
func (c *Client) Modify(ctx context.Context, path string, body interface{}) error {
	_, err := c.do(ctx, http.MethodPatch, path, body, nil)
	return err
}

// Replace puts body over the object at path.
func (c *Client) Replace(ctx context.Context, path string, body interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, body, nil)
	return err
}

// Delete removes the object at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// do sends one request and returns the response body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.StartRequestSpan(ctx, method, path)
	defer span.End()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	// A scheduled deletion counts as issued once its first request is written.
	trace := &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { engine.Issued(ctx) },
	}
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.config.User, c.config.Password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	timer := telemetry.NewTimer()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteCall(method, "error", timer.Duration())
		telemetry.RecordError(span, err)
		c.logger.WithError(err).Debugf("%s %s failed", method, path)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.RecordRemoteCall(method, strconv.Itoa(resp.StatusCode), timer.Duration())
	telemetry.SetAttributes(span, telemetry.AttrHTTPStatus.Int(resp.StatusCode))
	c.logger.Debugf("%s %s -> %d", method, path, resp.StatusCode)

	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to read response of %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp.StatusCode, data)
		telemetry.RecordError(span, apiErr)
		return nil, apiErr
	}

	telemetry.RecordSuccess(span)
	return data, nil
}
