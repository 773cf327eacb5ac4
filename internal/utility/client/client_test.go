package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gridpulse/go-dre/pkg/circuitbreaker"
)

// fakeDoer scripts transport responses and records every request.
type fakeDoer struct {
	responses []fakeResponse
	requests  []recordedRequest
}

type fakeResponse struct {
	status int
	body   string
	err    error
}

type recordedRequest struct {
	method string
	url    string
	body   string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.requests = append(f.requests, recordedRequest{
		method: req.Method,
		url:    req.URL.String(),
		body:   body,
	})

	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	r := f.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(strings.NewReader(r.body)),
	}, nil
}

// recordingTracker captures usage-tracking calls.
type recordingTracker struct {
	entries []map[string]interface{}
}

func (r *recordingTracker) Track(_ context.Context, level, message string, details map[string]interface{}, _ string) {
	entry := map[string]interface{}{"level": level, "message": message}
	for k, v := range details {
		entry[k] = v
	}
	r.entries = append(r.entries, entry)
}

func newTestClient(doer Doer, tracker UsageTracker) (*Client, *[]time.Duration) {
	c := New(DefaultConfig("https://platform.example", "hunter2"), doer, tracker, nil)
	delays := &[]time.Duration{}
	c.backoff = func(attempt int) time.Duration {
		d := time.Duration(1<<uint(attempt)) * time.Second
		*delays = append(*delays, d)
		return time.Microsecond // keep tests fast, record intent
	}
	return c, delays
}

func TestCallRetriesTransportFailuresThenSucceeds(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{
		{err: errors.New("connection reset")},
		{err: errors.New("connection reset")},
		{status: 200, body: "<message><status>valid</status></message>"},
	}}
	c, delays := newTestClient(doer, nil)

	res, err := c.Call(context.Background(), PathValidate, map[string]string{"utility_no": "4455"}, "POST", true)
	if err != nil {
		t.Fatalf("call should succeed after retries: %v", err)
	}
	if len(doer.requests) != 3 {
		t.Fatalf("transport invoked %d times, want 3", len(doer.requests))
	}
	if len(*delays) != 2 {
		t.Fatalf("expected 2 backoff waits, got %d", len(*delays))
	}
	if (*delays)[0] >= (*delays)[1] {
		t.Errorf("backoff must increase: %v then %v", (*delays)[0], (*delays)[1])
	}
	if (*delays)[0] != 2*time.Second || (*delays)[1] != 4*time.Second {
		t.Errorf("backoff = %v, want [2s 4s]", *delays)
	}
	if res.Doc.Text("message", "status") != "valid" {
		t.Error("parsed document should carry the response status")
	}
}

func TestCallExhaustsRetriesOnServerErrors(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 500, body: "boom"}}}
	c, _ := newTestClient(doer, nil)

	_, err := c.Call(context.Background(), PathEnroll, nil, "POST", false)
	if err == nil {
		t.Fatal("expected terminal error")
	}
	if len(doer.requests) != 3 {
		t.Errorf("transport invoked %d times, want exactly 3", len(doer.requests))
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *APIError, got %T", err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 404, body: "nope"}}}
	c, _ := newTestClient(doer, nil)

	_, err := c.Call(context.Background(), PathValidate, nil, "POST", false)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(doer.requests) != 1 {
		t.Errorf("4xx must not retry: transport invoked %d times", len(doer.requests))
	}
}

func TestCredentialNeverAppearsInURL(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: "PROMO10"}}}
	tracker := &recordingTracker{}
	c, _ := newTestClient(doer, tracker)

	_, err := c.Call(context.Background(), PathPromoCodes, nil, "GET", false)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	req := doer.requests[0]
	if req.method != http.MethodPost {
		t.Errorf("GET carrying a credential must upgrade to POST, got %s", req.method)
	}
	if strings.Contains(req.url, "pswd") || strings.Contains(req.url, "hunter2") {
		t.Errorf("credential leaked into URL: %s", req.url)
	}
	if !strings.Contains(req.body, "pswd=hunter2") {
		t.Error("credential should travel in the form body")
	}

	for _, entry := range tracker.entries {
		if p, ok := entry["params"].(map[string]string); ok {
			if p["pswd"] != "[REDACTED]" {
				t.Errorf("tracked pswd = %q, want redacted", p["pswd"])
			}
		}
	}
}

func TestCallGetWithoutCredentialStaysGet(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: "ok"}}}
	cfg := DefaultConfig("https://platform.example", "")
	c := New(cfg, doer, nil, nil)

	_, err := c.Call(context.Background(), PathPromoCodes, map[string]string{"zip": "19901"}, "GET", false)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	req := doer.requests[0]
	if req.method != http.MethodGet {
		t.Errorf("method = %s, want GET", req.method)
	}
	if !strings.Contains(req.url, "zip=19901") {
		t.Errorf("query params missing from URL: %s", req.url)
	}
}

func TestCallMalformedXML(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: "<message><status>ok</message>"}}}
	c, _ := newTestClient(doer, nil)

	_, err := c.Call(context.Background(), PathValidate, nil, "POST", true)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("malformed XML should surface as *APIError, got %v", err)
	}
}

func TestCallHonorsCancellationDuringBackoff(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 500, body: ""}}}
	c := New(DefaultConfig("https://platform.example", "pw"), doer, nil, nil)
	// Real backoff here; cancellation must cut it short.
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, PathEnroll, nil, "POST", false)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return promptly after cancellation")
	}
}

// pathDoer serves one scripted status per endpoint path and counts calls.
type pathDoer struct {
	statuses map[string]int
	calls    map[string]int
}

func (p *pathDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		io.Copy(io.Discard, req.Body)
	}
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[req.URL.Path]++

	status := p.statuses[req.URL.Path]
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("<message><status>valid</status></message>")),
	}, nil
}

func TestBreakerIsolatesEndpointGroups(t *testing.T) {
	doer := &pathDoer{statuses: map[string]int{PathScheduling: 500}}
	c, _ := newTestClient(doer, nil)
	c.WithBreakers(circuitbreaker.NewManager(zap.NewNop()), circuitbreaker.DefaultConfig("platform"))

	// Three consecutive failed calls trip the scheduling breaker.
	for i := 0; i < 3; i++ {
		if _, err := c.Call(context.Background(), PathScheduling, nil, "POST", false); err == nil {
			t.Fatal("scheduling call against a 500 endpoint should fail")
		}
	}
	attempts := doer.calls[PathScheduling]
	if attempts != 9 {
		t.Fatalf("scheduling attempts = %d, want 9 (3 calls x 3 tries)", attempts)
	}

	// The open circuit rejects without touching the transport.
	if _, err := c.Call(context.Background(), PathScheduling, nil, "POST", false); err == nil {
		t.Fatal("open circuit must reject the call")
	}
	if doer.calls[PathScheduling] != attempts {
		t.Errorf("open circuit reached the transport: %d calls", doer.calls[PathScheduling])
	}

	// The enrollment group has its own breaker and keeps flowing.
	if _, err := c.Call(context.Background(), PathValidate, nil, "POST", true); err != nil {
		t.Fatalf("validation must not be blocked by the scheduling breaker: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{status: 200, body: "PROMO10,PROMO25"}}}
	c, _ := newTestClient(doer, nil)

	h := c.HealthCheck(context.Background())
	if h.State != HealthHealthy {
		t.Errorf("state = %s, want healthy", h.State)
	}
	if h.Error != "" {
		t.Errorf("unexpected error text: %s", h.Error)
	}
}

func TestHealthCheckError(t *testing.T) {
	doer := &fakeDoer{responses: []fakeResponse{{err: errors.New("no route to host")}}}
	c, _ := newTestClient(doer, nil)

	h := c.HealthCheck(context.Background())
	if h.State != HealthError {
		t.Errorf("state = %s, want error", h.State)
	}
	if h.Error == "" {
		t.Error("error state should carry the failure text")
	}
}
