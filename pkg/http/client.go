package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const MethodGet = http.MethodGet

// RequestOptions describes one outbound request.
type RequestOptions struct {
	Method  string
	URL     string
	Headers map[string]string
}

// Client is a thin wrapper around net/http for the source fetcher.
type Client struct {
	client *http.Client
}

// ClientOption configures Client.
type ClientOption func(*http.Client)

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) { c.Timeout = timeout }
}

// NewClient creates a client with a 30s default timeout.
func NewClient(opts ...ClientOption) *Client {
	hc := &http.Client{Timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{client: hc}
}

// SendRequest issues the request. The caller owns the response body.
func (c *Client) SendRequest(ctx context.Context, opts *RequestOptions) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
