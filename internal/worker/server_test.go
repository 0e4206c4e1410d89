package worker

import (
	"encoding/json"
	"ingestion/internal/job"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*httptest.Server, *harness) {
	t.Helper()
	h := newHarness(job.StatusFailed)
	srv := httptest.NewServer(NewServer(h.engine).Routes(nil))
	t.Cleanup(srv.Close)
	return srv, h
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, statusResponse) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out statusResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestServer_StartAndStatus(t *testing.T) {
	t.Parallel()
	srv, h := newTestServer(t)

	resp, body := doRequest(t, http.MethodPost, srv.URL+"/ingestion", `{"id":"job-1","name":"a"}`)
	if resp.StatusCode != http.StatusOK || body.Status != job.StatusProcessing {
		t.Fatalf("start = %d %+v", resp.StatusCode, body)
	}

	ent, ok := h.engine.jobs.Get("job-1")
	if !ok {
		t.Fatal("job not stored")
	}
	if string(ent.payload) != `{"name":"a"}` {
		t.Errorf("payload = %s, want id stripped", ent.payload)
	}

	resp, body = doRequest(t, http.MethodGet, srv.URL+"/status/job-1", "")
	if resp.StatusCode != http.StatusOK || body.Status != job.StatusProcessing {
		t.Errorf("status = %d %+v", resp.StatusCode, body)
	}
}

func TestServer_StartRejectsBadBody(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	for _, body := range []string{`not json`, `[]`, `{"name":"a"}`, `{"id":""}`, `{"id":7}`} {
		resp, _ := doRequest(t, http.MethodPost, srv.URL+"/ingestion", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestServer_StatusNotFound(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, srv.URL+"/status/missing", "")
	if resp.StatusCode != http.StatusNotFound || body.Status != job.StatusNotFound {
		t.Errorf("status = %d %+v, want 404 NotFound", resp.StatusCode, body)
	}
}

func TestServer_Controls(t *testing.T) {
	t.Parallel()
	srv, h := newTestServer(t)
	doRequest(t, http.MethodPost, srv.URL+"/ingestion", `{"id":"job-1"}`)

	steps := []struct {
		path   string
		code   int
		status job.Status
	}{
		{"/pause/job-1", http.StatusOK, job.StatusPaused},
		{"/pause/job-1", http.StatusOK, job.StatusPaused},
		{"/resume/job-1", http.StatusOK, job.StatusProcessing},
		{"/retry/missing", http.StatusNotFound, job.StatusNotFound},
		{"/cancel/job-1", http.StatusOK, job.StatusCancelled},
		{"/resume/job-1", http.StatusConflict, job.StatusCancelled},
		{"/retry/job-1", http.StatusConflict, job.StatusCancelled},
	}
	for _, step := range steps {
		resp, body := doRequest(t, http.MethodGet, srv.URL+step.path, "")
		if resp.StatusCode != step.code || body.Status != step.status {
			t.Errorf("GET %s = %d %+v, want %d %s", step.path, resp.StatusCode, body, step.code, step.status)
		}
	}

	if got := h.engine.Status("job-1"); got != job.StatusCancelled {
		t.Errorf("final status %q, want Cancelled", got)
	}
}

func TestServer_Embedding(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/embedding/anything")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var vec []float64
	if err := json.NewDecoder(resp.Body).Decode(&vec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(vec) != 5 || vec[0] != 0.1 || vec[4] != 0.5 {
		t.Errorf("embedding = %v", vec)
	}
}

func TestServer_CompletionVisibleOverRPC(t *testing.T) {
	t.Parallel()
	e := NewEngine(Config{},
		WithDelay(func() time.Duration { return 10 * time.Millisecond }),
		WithOutcome(func() job.Status { return job.StatusCompleted }),
	)
	defer e.Close()
	srv := httptest.NewServer(NewServer(e).Routes(nil))
	defer srv.Close()

	doRequest(t, http.MethodPost, srv.URL+"/ingestion", `{"id":"job-1"}`)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, body := doRequest(t, http.MethodGet, srv.URL+"/status/job-1", ""); body.Status == job.StatusCompleted {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never completed")
}

func TestServer_Livez(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/livez")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("livez = %d", resp.StatusCode)
	}
}
