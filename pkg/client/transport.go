package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Request is a logical API call relative to the configured base URL.
type Request struct {
	// Method is GET or POST
	Method string

	// Endpoint is the API path (e.g., "/search/spending_by_award/")
	Endpoint string

	// Query are the URL query parameters
	Query url.Values

	// Body is the JSON payload for POST. It may be a Go value, []byte or json.RawMessage.
	Body any
}

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Cached is true when the body came from the cache instead of the network.
	Cached bool
}

// TransportRequest is what a Transport puts on the wire.
type TransportRequest struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Transport sends one request and reads the whole response. Any returned error
// is treated as a network failure.
type Transport interface {
	Send(ctx context.Context, req TransportRequest) (*Response, error)
}

// HTTPTransport is the net/http Transport, instrumented with OpenTelemetry.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps base (http.DefaultTransport when nil) with otelhttp.
func NewHTTPTransport(base http.RoundTripper) *HTTPTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &HTTPTransport{
		client: &http.Client{Transport: otelhttp.NewTransport(base)},
	}
}

// Send performs the request, enforcing req.Timeout for the whole exchange.
func (t *HTTPTransport) Send(ctx context.Context, req TransportRequest) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
