package conformance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpec = `
openapi: "3.0.0"
info:
  title: Test API
  version: "1.0"
paths:
  /pets:
    post:
      operationId: createPet
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required:
                - name
              properties:
                name:
                  type: string
      responses:
        "201":
          description: Created
          content:
            application/json:
              schema:
                type: object
                required:
                  - id
                properties:
                  id:
                    type: integer
`

func newServer(t *testing.T, respond string, received *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if received != nil {
			*received = string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, respond)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, tr engine.Transport, url, body string) (*engine.Exchange, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/pets", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return tr.Send(context.Background(), req)
}

func TestConformingExchange(t *testing.T) {
	var received string
	srv := newServer(t, `{"id":1}`, &received)

	c, err := NewFromBytes([]byte(testSpec), nil)
	require.NoError(t, err)

	ex, err := send(t, c.Wrap(engine.NewHTTPTransport(srv.Client())), srv.URL, `{"name":"Rex"}`)
	require.NoError(t, err)
	defer ex.Response.Body.Close()

	assert.Empty(t, c.Violations())
	assert.Equal(t, `{"name":"Rex"}`, received)

	data, err := io.ReadAll(ex.Response.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(data), "response body is restored after checking")
}

func TestRequestViolation(t *testing.T) {
	var received string
	srv := newServer(t, `{"id":1}`, &received)

	c, err := NewFromBytes([]byte(testSpec), nil)
	require.NoError(t, err)

	ex, err := send(t, c.Wrap(engine.NewHTTPTransport(srv.Client())), srv.URL, `{"nickname":"Rex"}`)
	require.NoError(t, err)
	ex.Response.Body.Close()

	assert.Equal(t, `{"nickname":"Rex"}`, received, "request body still reaches the server")

	found := c.Violations()
	require.NotEmpty(t, found)
	assert.Equal(t, DirectionRequest, found[0].Direction)
	assert.Equal(t, http.MethodPost, found[0].Method)
	assert.Equal(t, "/pets", found[0].Path)
}

func TestResponseViolation(t *testing.T) {
	srv := newServer(t, `{"id":"not-a-number"}`, nil)

	c, err := NewFromBytes([]byte(testSpec), nil)
	require.NoError(t, err)

	ex, err := send(t, c.Wrap(engine.NewHTTPTransport(srv.Client())), srv.URL, `{"name":"Rex"}`)
	require.NoError(t, err)
	ex.Response.Body.Close()

	found := c.Violations()
	require.NotEmpty(t, found)
	for _, v := range found {
		assert.Equal(t, DirectionResponse, v.Direction)
	}
}

func TestStrictMode(t *testing.T) {
	srv := newServer(t, `{"id":"not-a-number"}`, nil)

	opts := DefaultOptions()
	opts.Strict = true
	c, err := NewFromBytes([]byte(testSpec), opts)
	require.NoError(t, err)

	_, err = send(t, c.Wrap(engine.NewHTTPTransport(srv.Client())), srv.URL, `{"name":"Rex"}`)
	require.Error(t, err)

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.NotEmpty(t, cerr.Violations)
	assert.Contains(t, err.Error(), "openapi conformance")
}

func TestDisabledDirections(t *testing.T) {
	srv := newServer(t, `{"id":"not-a-number"}`, nil)

	c, err := NewFromBytes([]byte(testSpec), &Options{})
	require.NoError(t, err)

	ex, err := send(t, c.Wrap(engine.NewHTTPTransport(srv.Client())), srv.URL, `{}`)
	require.NoError(t, err)
	ex.Response.Body.Close()
	assert.Empty(t, c.Violations())
}

func TestTransportErrorPassesThrough(t *testing.T) {
	c, err := NewFromBytes([]byte(testSpec), nil)
	require.NoError(t, err)

	boom := errors.New("connection refused")
	failing := engine.TransportFunc(func(context.Context, *http.Request) (*engine.Exchange, error) {
		return nil, boom
	})

	_, err = send(t, c.Wrap(failing), "http://api.example.com", `{"name":"Rex"}`)
	assert.ErrorIs(t, err, boom)
}

func TestCheckable(t *testing.T) {
	ctx := context.Background()
	stream := &http.Response{Header: http.Header{"Content-Type": {"application/octet-stream"}}}
	assert.False(t, checkable(ctx, stream))
	assert.False(t, checkable(ctx, nil))

	doc := &http.Response{StatusCode: 200, Header: http.Header{"Content-Type": {"application/json; charset=utf-8"}}}
	assert.True(t, checkable(ctx, doc))

	events := &http.Response{StatusCode: 200, Header: http.Header{"Content-Type": {"text/event-stream"}}}
	assert.True(t, checkable(ctx, events), "no operation on the context")

	op := contract.New(contract.MethodGet, "/events").
		Response(contract.Status(200), "text/event-stream", contract.Stream()).
		Response(contract.Status(200), "application/json", contract.ValueType(nil)).
		MustBuild()
	ctx = WithOperation(ctx, op)
	assert.False(t, checkable(ctx, events))
	assert.True(t, checkable(ctx, doc))
}

const streamSpec = `
openapi: "3.0.0"
info:
  title: Events
  version: "1.0"
paths:
  /events:
    get:
      operationId: watchEvents
      responses:
        "200":
          description: Event stream
          x-courier-stream: true
          content:
            text/event-stream:
              schema:
                type: string
`

func TestStreamedResponseIsNotBuffered(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: hello\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c, err := NewFromBytes([]byte(streamSpec), nil)
	require.NoError(t, err)

	op := contract.New(contract.MethodGet, "/events").
		Response(contract.Status(200), "text/event-stream", contract.Stream()).
		MustBuild()
	ctx := WithOperation(context.Background(), op)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)

	type result struct {
		ex  *engine.Exchange
		err error
	}
	done := make(chan result, 1)
	go func() {
		ex, err := c.Wrap(engine.NewHTTPTransport(srv.Client())).Send(ctx, req)
		done <- result{ex, err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		defer r.ex.Response.Body.Close()
		buf := make([]byte, len("data: hello\n\n"))
		_, err := io.ReadFull(r.ex.Response.Body, buf)
		require.NoError(t, err)
		assert.Equal(t, "data: hello\n\n", string(buf))
	case <-time.After(5 * time.Second):
		t.Fatal("open stream was read to the end by the checker")
	}
	assert.Empty(t, c.Violations())
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	_, err = NewFromBytes([]byte("::not a document"), nil)
	assert.Error(t, err)
}

func TestViolationString(t *testing.T) {
	v := Violation{Direction: DirectionRequest, Method: "POST", Path: "/pets", Message: "body invalid", Reason: "missing name"}
	assert.Equal(t, "request POST /pets: body invalid (missing name)", v.String())
}
