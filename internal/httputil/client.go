// ABOUTME: HTTP client bound to one inference server: health GETs and streaming POSTs
// ABOUTME: Never retries; every deadline comes from the caller's context

package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"
)

// Client sends requests to a single server. It is safe for concurrent use.
type Client struct {
	hc     *http.Client
	base   string
	header http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithBearerToken authenticates every request; an empty token is ignored.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// NewClient creates a Client for baseURL, normalised with NormalizeBaseURL.
//
// The underlying http.Client has no overall Timeout: a healthy stream may run for
// a long time, so each call is bounded by its context instead.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{Transport: newTransport()},
		base:   NormalizeBaseURL(baseURL),
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

// URL returns the absolute URL for path.
func (c *Client) URL(path string) string {
	return c.base + path
}

// Get issues a GET for path. The caller must close the response body.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil, nil)
}

// PostStream POSTs a JSON body and asks for an event stream back. requestID, when
// set, is sent as X-Request-ID so server logs can be correlated with the outcome.
// The caller must close the response body.
func (c *Client) PostStream(ctx context.Context, path string, body []byte, requestID string) (*http.Response, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	if requestID != "" {
		h.Set("X-Request-ID", requestID)
	}
	return c.send(ctx, http.MethodPost, path, bytes.NewReader(body), h)
}

// CloseIdleConnections drops pooled keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, err
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	for k, v := range extra {
		req.Header[k] = v
	}
	// *url.Error already names the method and URL.
	return c.hc.Do(req)
}
