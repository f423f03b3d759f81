package cloudevent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sbt/pkg/backoff"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		statusCode int
		expected   string
	}{
		{400, "HTTP 400"},
		{404, "HTTP 404"},
		{500, "HTTP 500"},
		{503, "HTTP 503"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			t.Parallel()
			err := &HTTPError{StatusCode: tt.statusCode}
			if err.Error() != tt.expected {
				t.Errorf("HTTPError{%d}.Error() = %q, want %q", tt.statusCode, err.Error(), tt.expected)
			}
		})
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "400 Bad Request",
			err:      &HTTPError{StatusCode: 400},
			expected: true,
		},
		{
			name:     "401 Unauthorized",
			err:      &HTTPError{StatusCode: 401},
			expected: true,
		},
		{
			name:     "404 Not Found",
			err:      &HTTPError{StatusCode: 404},
			expected: true,
		},
		{
			name:     "499 client error boundary",
			err:      &HTTPError{StatusCode: 499},
			expected: true,
		},
		{
			name:     "500 Internal Server Error",
			err:      &HTTPError{StatusCode: 500},
			expected: false,
		},
		{
			name:     "503 Service Unavailable",
			err:      &HTTPError{StatusCode: 503},
			expected: false,
		},
		{
			name:     "399 not a client error",
			err:      &HTTPError{StatusCode: 399},
			expected: false,
		},
		{
			name:     "wrapped 422",
			err:      fmt.Errorf("deliver: %w", &HTTPError{StatusCode: 422}),
			expected: true,
		},
		{
			name:     "non-HTTP error",
			err:      context.DeadlineExceeded,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsClientError(tt.err)
			if got != tt.expected {
				t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	event := New("sbt.run.complete", "sbt/sweep", "run-1", "run-1-complete", map[string]any{"total": 9})

	signature, err := Sign(event, "secret-key")
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if len(signature) != len("sha256=")+64 {
		t.Errorf("Expected sha256= prefix and 64 hex chars, got %q", signature)
	}

	body, _ := json.Marshal(event)
	if !Verify(body, signature, "secret-key") {
		t.Error("Expected signature to verify with the same key")
	}
	if Verify(body, signature, "different-key") {
		t.Error("Expected signature not to verify with a different key")
	}
}

func fastPolicy(retries int) backoff.Policy {
	return backoff.Policy{Retries: retries, Initial: time.Millisecond, Max: time.Millisecond}
}

func TestSend_HeadersAndSignature(t *testing.T) {
	t.Parallel()
	type received struct {
		header http.Header
		body   []byte
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{header: r.Header.Clone(), body: body}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	event := New("sbt.job.submitted", "sbt/sweep", "run-1", "run-1-job-0", map[string]any{"index": 0})
	sender := NewSender(time.Second, fastPolicy(0))
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{SigningKey: "k"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	r := <-got
	if ct := r.header.Get("Content-Type"); ct != "application/cloudevents+json" {
		t.Errorf("Expected cloudevents content type, got %q", ct)
	}
	if typ := r.header.Get("Ce-Type"); typ != "sbt.job.submitted" {
		t.Errorf("Expected Ce-Type sbt.job.submitted, got %q", typ)
	}
	if id := r.header.Get("Ce-Id"); id != "run-1-job-0" {
		t.Errorf("Expected Ce-Id run-1-job-0, got %q", id)
	}
	if !Verify(r.body, r.header.Get(SignatureHeader), "k") {
		t.Error("Expected body signature to verify")
	}
}

func TestSend_Unsigned(t *testing.T) {
	t.Parallel()
	var signed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signed.Store(r.Header.Get(SignatureHeader) != "")
	}))
	defer srv.Close()

	sender := NewSender(time.Second, fastPolicy(0))
	event := New("sbt.run.complete", "sbt/sweep", "run-1", "run-1-complete", nil)
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if signed.Load() {
		t.Error("Expected no signature header without a key")
	}
}

func TestSend_RetriesServerErrors(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSender(time.Second, fastPolicy(3))
	event := New("sbt.run.complete", "sbt/sweep", "run-1", "run-1-complete", nil)
	if err := sender.Send(context.Background(), srv.URL, event, SendOptions{}); err != nil {
		t.Fatalf("Expected delivery after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sender := NewSender(time.Second, fastPolicy(3))
	event := New("sbt.run.complete", "sbt/sweep", "run-1", "run-1-complete", nil)
	err := sender.Send(context.Background(), srv.URL, event, SendOptions{})
	if !IsClientError(err) {
		t.Fatalf("Expected client error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestSend_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewSender(time.Second, fastPolicy(1))
	event := New("sbt.run.complete", "sbt/sweep", "run-1", "run-1-complete", nil)
	err := sender.Send(context.Background(), srv.URL, event, SendOptions{})
	if err == nil || err.Error() != "HTTP 502" {
		t.Errorf("Expected HTTP 502, got %v", err)
	}
}
