package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client reads model metadata from an Ollama server. Chat streaming goes
// through langchaingo; this covers the endpoints it does not.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, 30*time.Second)
}

func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Tags(ctx context.Context) (*TagsResponse, error) {
	var tagsResponse TagsResponse
	if err := c.get(ctx, "/api/tags", &tagsResponse); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return &tagsResponse, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var versionResponse VersionResponse
	if err := c.get(ctx, "/api/version", &versionResponse); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return versionResponse.Version, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request failed with status: %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
