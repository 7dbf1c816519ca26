package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxDrainBytes bounds how much of an ignored response body is read so the
// connection can be reused.
const maxDrainBytes = 64 << 10

// Response is the part of a registration exchange the fetcher reads.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Transport performs one registration exchange.
type Transport interface {
	Do(ctx context.Context, method, uri string, header http.Header) (*Response, error)
}

// HTTPTransport is a Transport over net/http that never follows redirects
// itself; redirect targets are queued as new work items instead.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps a copy of client with redirect following disabled.
// A nil client uses http.DefaultClient's settings.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	c := &http.Client{}
	if client != nil {
		*c = *client
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPTransport{client: c}
}

func (t *HTTPTransport) Do(ctx context.Context, method, uri string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}
