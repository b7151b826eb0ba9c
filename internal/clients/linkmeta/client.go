// Package linkmeta wraps the link-metadata scraper: given a URL,
// return its title/description/preview image.
package linkmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tributewall/tribute-backend/internal/logger"
)

type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url,omitempty"`
}

type Client interface {
	Lookup(ctx context.Context, link string) (*Metadata, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) Client {
	baseURL := strings.TrimSpace(os.Getenv("LINKMETA_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.microlink.io"
	}
	return &client{
		log:        log.With("client", "LinkMetaClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(os.Getenv("LINKMETA_API_KEY")),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func NewClientWithTransport(log *logger.Logger, baseURL string, hc *http.Client) Client {
	return &client{
		log:        log.With("client", "LinkMetaClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

func (c *client) Lookup(ctx context.Context, link string) (*Metadata, error) {
	if strings.TrimSpace(link) == "" {
		return nil, fmt.Errorf("link required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"?url="+url.QueryEscape(link), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("metadata lookup returned %d", resp.StatusCode)
	}

	// microlink-style envelope: {"status":"success","data":{...}}
	var envelope struct {
		Data struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Image       struct {
				URL string `json:"url"`
			} `json:"image"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode metadata response: %w", err)
	}
	return &Metadata{
		Title:       strings.TrimSpace(envelope.Data.Title),
		Description: strings.TrimSpace(envelope.Data.Description),
		ImageURL:    strings.TrimSpace(envelope.Data.Image.URL),
	}, nil
}
