package transport

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/killallgit/vivu/pkg/config"
	"github.com/killallgit/vivu/pkg/stream"
)

const (
	KindHTTP   = "http"
	KindOllama = "ollama"
)

// FromConfig builds the transport named by stream.transport.
func FromConfig(cfg *config.Config) (stream.Transport, error) {
	switch cfg.Stream.Transport {
	case "", KindHTTP:
		client := &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				ResponseHeaderTimeout: cfg.API.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		}
		return NewHTTP(cfg.StreamURL(), WithHTTPClient(client), WithToken(cfg.API.Token)), nil
	case KindOllama:
		return NewOllama(cfg.Ollama.URL, cfg.DefaultModel())
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", cfg.Stream.Transport, KindHTTP, KindOllama)
	}
}
