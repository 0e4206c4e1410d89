package cloudevent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSender_Send(t *testing.T) {
	t.Parallel()
	var (
		gotHeader http.Header
		gotBody   []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	event := New("ingestion.job.status", "ingestion-service", "job-1", "evt-1", map[string]any{"status": "Processing"})
	sender := NewSender(5 * time.Second)

	if err := sender.Send(context.Background(), server.URL, event, "secret"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if ct := gotHeader.Get("Content-Type"); ct != "application/cloudevents+json" {
		t.Errorf("unexpected content type %q", ct)
	}
	if gotHeader.Get("Ce-Type") != "ingestion.job.status" || gotHeader.Get("Ce-Subject") != "job-1" {
		t.Errorf("unexpected CloudEvent headers: %v", gotHeader)
	}
	if !Verify(gotBody, "secret", gotHeader.Get(SignatureHeader)) {
		t.Error("signature does not verify against the delivered body")
	}

	var decoded CloudEvent
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("body is not a CloudEvent: %v", err)
	}
	if decoded.Data["status"] != "Processing" {
		t.Errorf("unexpected data %v", decoded.Data)
	}
}

func TestSender_Send_NoSigningKey(t *testing.T) {
	t.Parallel()
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(SignatureHeader)
	}))
	defer server.Close()

	event := New("ingestion.job.status", "test", "job-1", "evt-1", nil)
	if err := NewSender(time.Second).Send(context.Background(), server.URL, event, ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if signature != "" {
		t.Errorf("expected no signature header, got %q", signature)
	}
}

func TestSender_Send_HTTPError(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	event := New("ingestion.job.status", "test", "job-1", "evt-1", nil)
	err := NewSender(time.Second).Send(context.Background(), server.URL, event, "")
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if IsClientError(err) {
		t.Error("503 must not be classified as a client error")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"400", &HTTPError{StatusCode: 400}, true},
		{"404", &HTTPError{StatusCode: 404}, true},
		{"499 boundary", &HTTPError{StatusCode: 499}, true},
		{"wrapped 410", fmt.Errorf("deliver: %w", &HTTPError{StatusCode: 410}), true},
		{"500", &HTTPError{StatusCode: 500}, false},
		{"399", &HTTPError{StatusCode: 399}, false},
		{"non-HTTP error", context.DeadlineExceeded, false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsClientError(tt.err); got != tt.expected {
				t.Errorf("IsClientError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	t.Parallel()
	payload := []byte(`{"id":"evt-1"}`)

	sig := Signature(payload, "key")
	if sig != Signature(payload, "key") {
		t.Error("signature should be deterministic")
	}
	if sig == Signature(payload, "different-key") {
		t.Error("different keys should produce different signatures")
	}
	if Verify(payload, "key", "sha256=deadbeef") {
		t.Error("bogus signature must not verify")
	}
}
