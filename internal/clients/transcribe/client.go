// Package transcribe wraps the speech-to-text provider's REST API:
// submit an audio URL, get a job id, poll the job until it settles.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Text   string    `json:"text,omitempty"`
	Error  string    `json:"error,omitempty"`
}

type Client interface {
	Submit(ctx context.Context, audioURL string, languageCode string) (string, error)
	Poll(ctx context.Context, jobID string) (*Job, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds the provider client. A missing API key is not a
// construction error; Submit reports it as a terminal failure so the
// upload flow is never blocked on provider configuration.
func NewClient(log *logger.Logger) Client {
	baseURL := strings.TrimSpace(os.Getenv("TRANSCRIBE_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.assemblyai.com/v2/transcript"
	}
	return &client{
		log:        log.With("client", "TranscribeClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(os.Getenv("TRANSCRIBE_API_KEY")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithTransport is the test constructor.
func NewClientWithTransport(log *logger.Logger, baseURL, apiKey string, hc *http.Client) Client {
	return &client{
		log:        log.With("client", "TranscribeClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: hc,
	}
}

type providerHTTPError struct {
	Status int
	Body   string
}

func (e *providerHTTPError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.Status, e.Body)
}
func (e *providerHTTPError) HTTPStatusCode() int { return e.Status }
func (e *providerHTTPError) Unwrap() error       { return faults.ErrProvider }

func (c *client) Submit(ctx context.Context, audioURL string, languageCode string) (string, error) {
	if c.apiKey == "" {
		return "", faults.ErrMissingCredential
	}
	if languageCode == "" {
		languageCode = "en"
	}
	payload, err := json.Marshal(map[string]string{
		"audio_url":     audioURL,
		"language_code": languageCode,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %v", faults.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &providerHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return "", fmt.Errorf("%w: decode submit response: %v", faults.ErrProvider, err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("%w: submit response missing job id", faults.ErrProvider)
	}
	return job.ID, nil
}

func (c *client) Poll(ctx context.Context, jobID string) (*Job, error) {
	if c.apiKey == "" {
		return nil, faults.ErrMissingCredential
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: poll: %v", faults.ErrProvider, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerHTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("%w: decode poll response: %v", faults.ErrProvider, err)
	}
	return &job, nil
}
