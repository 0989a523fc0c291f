package engine

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

// defaultUserAgent as added by http.DefaultTransport when the request does
// not set one.
const defaultUserAgent = "Go-http-client/1.1"

// Exchange pairs a response with the request exactly as it went out,
// including headers the transport added.
type Exchange struct {
	Request  *http.Request
	Response *http.Response
}

// Transport sends a request and reports what was sent along with the
// response. Implementations own connection handling, TLS and retries.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*Exchange, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *http.Request) (*Exchange, error)

func (f TransportFunc) Send(ctx context.Context, req *http.Request) (*Exchange, error) {
	return f(ctx, req)
}

// HTTPTransport sends requests through an *http.Client.
type HTTPTransport struct {
	client *http.Client
}

func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) Send(ctx context.Context, req *http.Request) (*Exchange, error) {
	resp, err := t.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("http client returned no response")
	}

	sent := resp.Request
	if sent == nil {
		sent = req
	}
	return &Exchange{Request: asSent(sent), Response: resp}, nil
}

// asSent clones the request and adds the headers net/http writes on the
// wire without recording them on the request.
func asSent(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())

	val, ok := clone.Header["User-Agent"]
	if !ok {
		clone.Header.Set("User-Agent", defaultUserAgent)
	} else if val == nil {
		clone.Header.Del("User-Agent")
	}

	host := clone.Host
	if host == "" && clone.URL != nil {
		host = clone.URL.Host
	}
	if host != "" {
		clone.Header.Set("Host", host)
	}

	// only the TransferEncoding field is relevant on requests.
	clone.Header.Del("Transfer-Encoding")
	switch {
	case clone.ContentLength > 0:
		clone.Header.Set("Content-Length", strconv.FormatInt(clone.ContentLength, 10))
	case clone.Body != nil && clone.Body != http.NoBody:
		// unknown length, net/http falls back to chunked encoding.
		clone.Header.Set("Transfer-Encoding", "chunked")
	case requiresLength(clone.Method):
		clone.Header.Set("Content-Length", "0")
	}

	return clone
}

func requiresLength(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
