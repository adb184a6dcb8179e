package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/killallgit/vivu/pkg/chat"
	"github.com/killallgit/vivu/pkg/logger"
)

// ErrStatus matches every *StatusError.
var ErrStatus = errors.New("unexpected response status")

// StatusError is returned when the stream endpoint answers with a non-2xx
// status. Body holds the start of the response body.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stream request failed with status: %d", e.Code)
	}
	return fmt.Sprintf("stream request failed with status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// AuthFunc returns the value of the Authorization header, or "" for none.
type AuthFunc func() string

// BearerToken returns an AuthFunc sending a fixed bearer token.
func BearerToken(token string) AuthFunc {
	if token == "" {
		return nil
	}
	return func() string {
		return "Bearer " + token
	}
}

// HTTPTransport posts the chat request to an event-stream endpoint and
// hands back the response body.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	auth       AuthFunc
}

type HTTPOption func(*HTTPTransport)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

func WithAuth(auth AuthFunc) HTTPOption {
	return func(t *HTTPTransport) {
		t.auth = auth
	}
}

func WithToken(token string) HTTPOption {
	return WithAuth(BearerToken(token))
}

// NewHTTP creates a transport for the stream endpoint at url. The default
// client bounds connecting and waiting for headers, never the whole body.
func NewHTTP(url string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		url: url,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *HTTPTransport) Open(ctx context.Context, req chat.ChatRequest) (io.ReadCloser, error) {
	log := logger.WithComponent("http_transport")

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if t.auth != nil {
		if v := t.auth(); v != "" {
			httpReq.Header.Set("Authorization", v)
		}
	}

	log.Debug("Opening stream", "url", t.url, "model", req.Model, "messages", len(req.Messages))

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn("Stream endpoint refused request", "status_code", resp.StatusCode)
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return resp.Body, nil
}
