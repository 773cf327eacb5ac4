// Package client provides the resilient HTTP client for the utility
// enrollment platform. It owns request construction, retry with exponential
// backoff, credential-safety enforcement, and structured request/response
// tracking. The platform speaks form-encoded requests and ad hoc XML
// responses over fixed relative paths.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/internal/observability/metrics"
	"github.com/gridpulse/go-dre/internal/utility/params"
	"github.com/gridpulse/go-dre/internal/utility/xmltree"
	"github.com/gridpulse/go-dre/pkg/circuitbreaker"
)

// Platform endpoint paths. Casing and pluralization are the platform's.
const (
	PathValidate   = "/prospects/validate.xml"
	PathEnroll     = "/prospects/enroll.xml"
	PathScheduling = "/field_service_requests/scheduling.xml"
	PathSchedule   = "/field_service_requests/schedule"
	PathPromoCodes = "/promo_codes"
)

// APIError is a terminal transport or protocol failure.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("platform api error (status %d): %s", e.StatusCode, e.Message)
	}
	return "platform api error: " + e.Message
}

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// inject fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UsageTracker receives structured request/response telemetry. Credentials
// are redacted before anything reaches the tracker.
type UsageTracker interface {
	Track(ctx context.Context, level, message string, details map[string]interface{}, correlationID string)
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the platform's base endpoint.
	BaseURL string
	// Password is the shared-secret pswd parameter.
	Password string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// MaxAttempts is the retry ceiling per call.
	MaxAttempts int
}

// DefaultConfig returns the platform's production call policy.
func DefaultConfig(baseURL, password string) Config {
	return Config{
		BaseURL:     baseURL,
		Password:    password,
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
	}
}

// Client is the resilient platform client.
type Client struct {
	cfg        Config
	doer       Doer
	tracker    UsageTracker
	logger     *zap.Logger
	tracer     trace.Tracer
	breakers   *circuitbreaker.Manager
	breakerCfg circuitbreaker.Config
	metrics    *metrics.Metrics

	// backoff computes the wait before retry n; overridable in tests.
	backoff func(attempt int) time.Duration
}

// New creates a platform client.
func New(cfg Config, doer Doer, tracker UsageTracker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Client{
		cfg:     cfg,
		doer:    doer,
		tracker: tracker,
		logger:  logger,
		tracer:  otel.Tracer("platform-client"),
		backoff: func(attempt int) time.Duration {
			return time.Duration(1<<uint(attempt)) * time.Second
		},
	}
}

// WithBreakers wraps every outbound call in a circuit breaker for its
// endpoint group, created lazily from the given base config. Grouping keeps
// a failing scheduling endpoint from blocking account validations.
func (c *Client) WithBreakers(mgr *circuitbreaker.Manager, cfg circuitbreaker.Config) *Client {
	c.breakers = mgr
	c.breakerCfg = cfg
	return c
}

// endpointGroup buckets platform paths into breaker names. The prospect
// endpoints share one legacy backend, the field-service endpoints another.
func endpointGroup(path string) string {
	switch path {
	case PathValidate, PathEnroll:
		return "enrollment"
	case PathScheduling, PathSchedule:
		return "scheduling"
	default:
		return "platform"
	}
}

// WithMetrics attaches the Prometheus registry bundle.
func (c *Client) WithMetrics(m *metrics.Metrics) *Client {
	c.metrics = m
	return c
}

// CallResult is the outcome of one platform call.
type CallResult struct {
	// Doc is the parsed tree when parsing was requested.
	Doc *xmltree.Document
	// Raw is the verbatim response body.
	Raw string
	// Status is the HTTP status code.
	Status int
	// Elapsed is the total call duration including retries.
	Elapsed time.Duration
}

// Call performs one platform call. The shared-secret password is injected
// as the pswd parameter; if that would land on a GET query string the
// method is upgraded to POST so credentials never appear in a URL or
// access log. Transport failures and 5xx statuses retry with exponential
// backoff up to the configured ceiling; 4xx statuses fail immediately.
func (c *Client) Call(ctx context.Context, path string, p map[string]string, method string, parseTree bool) (*CallResult, error) {
	ctx, span := c.tracer.Start(ctx, "platform_call",
		trace.WithAttributes(
			attribute.String("path", path),
			attribute.String("method", method),
		))
	defer span.End()

	method = strings.ToUpper(method)
	values := url.Values{}
	for k, v := range p {
		values.Set(k, v)
	}
	if c.cfg.Password != "" {
		values.Set(params.ParamPassword, c.cfg.Password)
	}

	if method == http.MethodGet && values.Get(params.ParamPassword) != "" {
		c.logger.Info("credential parameter on GET request, upgrading to POST",
			zap.String("path", path))
		method = http.MethodPost
		span.SetAttributes(attribute.Bool("method_upgraded", true))
	}

	corrID := CorrelationID(ctx)
	c.track(ctx, "info", "platform request", map[string]interface{}{
		"method": method,
		"path":   path,
		"params": redact(values),
	}, corrID)

	start := time.Now()
	res, err := c.execute(ctx, path, values, method)
	elapsed := time.Since(start)

	details := map[string]interface{}{
		"method":     method,
		"path":       path,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		details["error"] = err.Error()
		span.RecordError(err)
		c.track(ctx, "error", "platform response", details, corrID)
	} else {
		details["status"] = res.Status
		c.track(ctx, "info", "platform response", details, corrID)
	}
	if c.metrics != nil {
		c.metrics.PlatformCalls.WithLabelValues(path, outcome).Inc()
		c.metrics.PlatformCallDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		return nil, err
	}

	res.Elapsed = elapsed
	if parseTree {
		doc, perr := xmltree.Parse(res.Raw)
		if perr != nil {
			return nil, &APIError{Message: "malformed response: " + perr.Error(), StatusCode: res.Status}
		}
		res.Doc = doc
	}
	return res, nil
}

// execute runs the retry loop, optionally through the endpoint group's
// circuit breaker.
func (c *Client) execute(ctx context.Context, path string, values url.Values, method string) (*CallResult, error) {
	if c.breakers == nil {
		return c.attemptLoop(ctx, path, values, method)
	}
	breaker, err := c.breakers.GetOrCreate(endpointGroup(path), c.breakerCfg)
	if err != nil {
		c.logger.Warn("breaker unavailable, calling without it", zap.Error(err))
		return c.attemptLoop(ctx, path, values, method)
	}
	out, err := breaker.Execute(ctx, func() (interface{}, error) {
		return c.attemptLoop(ctx, path, values, method)
	})
	if err != nil {
		return nil, err
	}
	return out.(*CallResult), nil
}

func (c *Client) attemptLoop(ctx context.Context, path string, values url.Values, method string) (*CallResult, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if c.metrics != nil {
				c.metrics.PlatformRetries.Inc()
			}
			if err := c.wait(ctx, c.backoff(attempt-1)); err != nil {
				return nil, &APIError{Message: "cancelled during backoff: " + err.Error()}
			}
		}

		res, retryable, err := c.attempt(ctx, path, values, method)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		c.logger.Warn("platform call failed, will retry",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return nil, lastErr
}

// attempt performs a single request. The second return value reports
// whether the failure is retry-safe (transport error or 5xx).
func (c *Client) attempt(ctx context.Context, path string, values url.Values, method string) (*CallResult, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var req *http.Request
	var err error
	if method == http.MethodGet {
		if enc := values.Encode(); enc != "" {
			target += "?" + enc
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, false, &APIError{Message: "build request: " + err.Error()}
	}
	req.Header.Set("Accept", "application/xml, text/plain")

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, true, &APIError{Message: "transport failure: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &APIError{Message: "read response: " + err.Error(), StatusCode: resp.StatusCode}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, true, &APIError{Message: "server error", StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return nil, false, &APIError{Message: "request rejected", StatusCode: resp.StatusCode}
	}

	return &CallResult{Raw: string(body), Status: resp.StatusCode}, false, nil
}

// wait blocks for the backoff duration, honoring cancellation.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) track(ctx context.Context, level, message string, details map[string]interface{}, corrID string) {
	if c.tracker == nil {
		return
	}
	c.tracker.Track(ctx, level, message, details, corrID)
}

// redact produces a loggable copy of the parameters with the credential
// value masked.
func redact(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for k := range values {
		if k == params.ParamPassword {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = values.Get(k)
	}
	return out
}

type ctxKey string

const correlationKey ctxKey = "platform_correlation_id"

// WithCorrelationID attaches the caller's correlation ID to the context so
// it flows into usage-tracking records.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationID extracts the correlation ID, or "" when unset.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey).(string); ok {
		return id
	}
	return ""
}
