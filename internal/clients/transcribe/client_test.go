package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

func testClient(t *testing.T, handler http.Handler, apiKey string) Client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithTransport(log, srv.URL, apiKey, srv.Client())
}

func TestSubmitAndPoll(t *testing.T) {
	var gotAuth, gotLang string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodPost:
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotLang = body["language_code"]
			_ = json.NewEncoder(w).Encode(Job{ID: "job-7", Status: JobStatusQueued})
		case http.MethodGet:
			if r.URL.Path != "/job-7" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(Job{ID: "job-7", Status: JobStatusCompleted, Text: "hello"})
		}
	}), "key-123")

	id, err := c.Submit(context.Background(), "https://cdn.example.com/a.mp4", "")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "job-7" {
		t.Fatalf("job id = %q", id)
	}
	if gotAuth != "key-123" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotLang != "en" {
		t.Fatalf("language defaulted to %q, want en", gotLang)
	}

	job, err := c.Poll(context.Background(), id)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if job.Status != JobStatusCompleted || job.Text != "hello" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestSubmitWithoutKeyIsTerminal(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("provider must not be called without a credential")
	}), "")

	if _, err := c.Submit(context.Background(), "https://cdn.example.com/a.mp4", "en"); !errors.Is(err, faults.ErrMissingCredential) {
		t.Fatalf("err = %v, want MissingCredential", err)
	}
	if _, err := c.Poll(context.Background(), "job-1"); !errors.Is(err, faults.ErrMissingCredential) {
		t.Fatalf("err = %v, want MissingCredential", err)
	}
}

func TestProviderErrorsCarryStatus(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}), "key-123")

	_, err := c.Submit(context.Background(), "https://cdn.example.com/a.mp4", "en")
	if !errors.Is(err, faults.ErrProvider) {
		t.Fatalf("err = %v, want Provider", err)
	}
	var httpErr *providerHTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusTooManyRequests {
		t.Fatalf("status not surfaced: %v", err)
	}
}

func TestSubmitRejectsResponseWithoutJobID(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Job{Status: JobStatusQueued})
	}), "key-123")

	if _, err := c.Submit(context.Background(), "https://cdn.example.com/a.mp4", "en"); !errors.Is(err, faults.ErrProvider) {
		t.Fatalf("err = %v, want Provider", err)
	}
}
