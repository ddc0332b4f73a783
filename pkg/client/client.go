// Package client provides the HTTP GET client used against the restaurant
// directory and delivery APIs: API key header, client-side pacing, quota
// tracking, error classification and request metrics.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/restaurant-harvester/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for outgoing API requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_requests_total",
		Help: "Total upstream API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_request_duration_seconds",
		Help:    "Upstream API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_errors_total",
		Help: "Total upstream API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Auth headers used by the supported APIs.
const (
	HeaderDirectoryKey = "user-key"
	HeaderDeliveryKey  = "X-Access-Token"
)

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// CheckStatus returns an *APIError for non-2xx responses.
func (r *Response) CheckStatus(endpoint string) error {
	if r.OK() {
		return nil
	}
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: r.StatusCode,
		ErrorClass: classifyStatus(r.StatusCode),
		Message:    http.StatusText(r.StatusCode),
	}
}

// Getter is the minimal HTTP capability the fetchers depend on.
// Non-2xx responses are returned, not turned into errors; the error is
// reserved for requests that produced no response at all.
type Getter interface {
	Get(ctx context.Context, endpoint string, params url.Values) (*Response, error)
}

// Client is the API client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	pacer      *ratelimit.Pacer
	quota      *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://developers.zomato.com/api/v2.1/".
	BaseURL string

	// APIKey is the long-lived credential sent on every request.
	APIKey string

	// AuthHeader is the header carrying APIKey (e.g. "user-key").
	AuthHeader string

	// UserAgent header
	UserAgent string

	// Timeout per request
	Timeout time.Duration

	// Client-side pacing; RequestsPerSecond <= 0 disables it.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns a safe default configuration for the directory API.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		AuthHeader:        HeaderDirectoryKey,
		UserAgent:         "restaurant-harvester/0.1.0",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
		Burst:             1,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	if cfg.AuthHeader == "" {
		return nil, fmt.Errorf("auth header is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	logger := log.With().Str("component", "api-client").Str("host", base.Host).Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		pacer:   ratelimit.NewPacer(cfg.RequestsPerSecond, cfg.Burst),
		quota:   ratelimit.NewTracker(logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Get issues a GET for endpoint (relative to the base URL) with params.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	label := endpointLabel(endpoint)

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing: %w", err)
	}

	if err := c.quota.ShouldAllowRequest(); err != nil {
		requestsTotal.WithLabelValues(label, "quota_exhausted").Inc()
		return nil, err
	}

	target := c.resolve(endpoint, params)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(c.config.AuthHeader, c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", params.Encode()).
		Msg("Executing API request")

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(label).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			Endpoint:   endpoint,
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(label, "network_error").Inc()
		return nil, &APIError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        err,
		}
	}

	if err := c.quota.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
	}

	requestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("API request error")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// resolve joins endpoint onto the base URL and attaches params.
func (c *Client) resolve(endpoint string, params url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: strings.TrimPrefix(endpoint, "/")})
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// endpointLabel keeps metric cardinality bounded by masking the ids in
// paths like "restaurant/{id}/menu".
func endpointLabel(endpoint string) string {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	if len(parts) < 3 {
		return strings.Join(parts, "/")
	}
	for i := 1; i < len(parts)-1; i++ {
		parts[i] = "{id}"
	}
	return strings.Join(parts, "/")
}

// Quota returns the upstream quota tracker.
func (c *Client) Quota() *ratelimit.Tracker {
	return c.quota
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
