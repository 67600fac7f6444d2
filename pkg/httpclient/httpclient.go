// Package httpclient provides a shared, pooled HTTP client factory for
// outbound target calls. Connection reuse matters here: a run fires many
// sequential requests at the same AI endpoint.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// Config holds client construction options.
type Config struct {
	// InsecureSkipVerify skips TLS certificate verification, for lab
	// targets with self-signed certificates.
	InsecureSkipVerify bool

	// MaxIdleConns is the idle pool size across all hosts (default 20).
	MaxIdleConns int

	// MaxConnsPerHost caps connections per host (default 10).
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections stay pooled (default 90s).
	IdleConnTimeout time.Duration

	// DialTimeout bounds connection establishment (default 10s).
	DialTimeout time.Duration
}

var (
	defaultClient *http.Client
	defaultOnce   sync.Once
)

// Default returns a shared pre-configured client. Per-attempt deadlines
// are enforced by request contexts, so the client itself carries no
// overall timeout.
func Default() *http.Client {
	defaultOnce.Do(func() {
		defaultClient = New(Config{})
	})
	return defaultClient
}

// New builds a client from cfg, filling zero values with defaults.
func New(cfg Config) *http.Client {
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 20
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 10
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = 90 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport}
}
