package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/killallgit/vivu/pkg/logger"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("not found")

// AuthFunc returns the value of the Authorization header, or "" for none.
type AuthFunc func() string

// Client talks to the chat backend's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       AuthFunc
	log        *logger.ComponentLogger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithAuth(auth AuthFunc) Option {
	return func(cl *Client) {
		cl.auth = auth
	}
}

// WithToken sends token as a bearer token.
func WithToken(token string) Option {
	return func(cl *Client) {
		if token == "" {
			cl.auth = nil
			return
		}
		cl.auth = func() string { return "Bearer " + token }
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.WithComponent("api_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a request and decodes a JSON answer into out when out is not nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.auth != nil {
		if v := c.auth(); v != "" {
			req.Header.Set("Authorization", v)
		}
	}

	c.log.Debug("Request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("Request failed", "method", method, "path", path, "status_code", resp.StatusCode)
		return fmt.Errorf("%s %s failed with status: %d%s", method, path, resp.StatusCode, errorDetail(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// errorDetail pulls the message out of an error body, if there is one.
func errorDetail(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 1024))
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Message != "" {
			return ": " + parsed.Message
		}
		if parsed.Error != "" {
			return ": " + parsed.Error
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return ": " + text
	}
	return ""
}

func pagePath(path string, page, size int) string {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))
	return path + "?" + q.Encode()
}
