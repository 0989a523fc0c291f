// Package conformance checks live traffic against the OpenAPI document the
// calls were bound from.
package conformance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/engine"
	"github.com/kolah/courier/internal/mediatype"
	"github.com/pb33f/libopenapi"
	validator "github.com/pb33f/libopenapi-validator"
	validatorErrors "github.com/pb33f/libopenapi-validator/errors"
)

// Checker validates requests and responses passing through a transport.
type Checker struct {
	validator validator.Validator
	options   *Options

	mu         sync.Mutex
	violations []Violation
}

// New creates a checker for a parsed document.
func New(doc libopenapi.Document, opts *Options) (*Checker, error) {
	if doc == nil {
		return nil, errors.New("conformance: document is required")
	}
	v, errs := validator.NewValidator(doc)
	if len(errs) > 0 {
		return nil, fmt.Errorf("conformance: %w", errors.Join(errs...))
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return &Checker{validator: v, options: &o}, nil
}

// NewFromBytes parses a document and creates a checker for it.
func NewFromBytes(spec []byte, opts *Options) (*Checker, error) {
	doc, err := libopenapi.NewDocument(spec)
	if err != nil {
		return nil, err
	}
	return New(doc, opts)
}

// Violations returns every violation recorded so far.
func (c *Checker) Violations() []Violation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Violation(nil), c.violations...)
}

// Wrap returns a transport that checks traffic sent through next.
func (c *Checker) Wrap(next engine.Transport) engine.Transport {
	return engine.TransportFunc(func(ctx context.Context, req *http.Request) (*engine.Exchange, error) {
		var found []Violation

		if c.options.ValidateRequest {
			probe, err := bufferRequest(req)
			if err != nil {
				return nil, err
			}
			if ok, errs := c.validator.ValidateHttpRequestSync(probe); !ok {
				found = append(found, violations(DirectionRequest, req, errs)...)
			}
		}

		ex, err := next.Send(ctx, req)
		if err != nil {
			c.record(found)
			return nil, err
		}

		if c.options.ValidateResponse && checkable(ctx, ex.Response) {
			probe, err := bufferResponse(ex.Response)
			if err != nil {
				c.record(found)
				return ex, nil
			}
			probe.Request = req
			if ok, errs := c.validator.ValidateHttpResponse(requestFor(req, ex), probe); !ok {
				found = append(found, violations(DirectionResponse, req, errs)...)
			}
		}

		c.record(found)
		if c.options.Strict && len(found) > 0 {
			ex.Response.Body.Close()
			return nil, &Error{Violations: found}
		}
		return ex, nil
	})
}

func (c *Checker) record(found []Violation) {
	if len(found) == 0 {
		return
	}
	for _, v := range found {
		c.options.Logger.Warn("openapi conformance violation",
			"direction", v.Direction,
			"method", v.Method,
			"path", v.Path,
			"message", v.Message,
			"reason", v.Reason,
		)
	}
	c.mu.Lock()
	c.violations = append(c.violations, found...)
	c.mu.Unlock()
}

func violations(dir Direction, req *http.Request, errs []*validatorErrors.ValidationError) []Violation {
	result := make([]Violation, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		result = append(result, Violation{
			Direction: dir,
			Method:    req.Method,
			Path:      req.URL.Path,
			Message:   e.Message,
			Reason:    e.Reason,
			HowToFix:  e.HowToFix,
		})
	}
	return result
}

type operationKey struct{}

// WithOperation attaches the operation being executed to ctx. Responses the
// operation reads as raw streams are then left unread by the checker.
func WithOperation(ctx context.Context, op *contract.Operation) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// checkable reports whether a response body can be buffered. Binary bodies
// and responses the operation streams are handed to the caller unread.
func checkable(ctx context.Context, resp *http.Response) bool {
	if resp == nil {
		return false
	}
	contentType := resp.Header.Get("Content-Type")
	if mediatype.Essence(contentType) == mediatype.OctetStream {
		return false
	}
	return !streamed(ctx, resp.StatusCode, contentType)
}

// streamed reports whether the operation on ctx reads this response as a
// stream: a stream definition matches its content type, or is the only
// definition for the status.
func streamed(ctx context.Context, status int, contentType string) bool {
	op, _ := ctx.Value(operationKey{}).(*contract.Operation)
	if op == nil {
		return false
	}
	defs := op.Responses(status)
	for _, d := range defs {
		if d.Type.Kind() != contract.KindStream {
			continue
		}
		if len(defs) == 1 || mediatype.Matches(contentType, d.ContentType) {
			return true
		}
	}
	return false
}

// bufferRequest reads the request body into memory, restores it on req and
// returns a copy for validation.
func bufferRequest(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("conformance: reading request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	probe := req.Clone(req.Context())
	probe.Body = io.NopCloser(bytes.NewReader(data))
	return probe, nil
}

// bufferResponse reads the response body into memory, restores it on resp
// and returns a copy for validation.
func bufferResponse(resp *http.Response) (*http.Response, error) {
	if resp.Body == nil {
		probe := *resp
		probe.Body = http.NoBody
		return &probe, nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		// The caller still sees the partial body followed by the failure.
		resp.Body = io.NopCloser(io.MultiReader(bytes.NewReader(data), failedReader{err}))
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	probe := *resp
	probe.Body = io.NopCloser(bytes.NewReader(data))
	return &probe, nil
}

// requestFor returns a request usable for response validation: only the
// method and URL are consulted, so the body is dropped.
func requestFor(req *http.Request, ex *engine.Exchange) *http.Request {
	src := req
	if ex.Request != nil {
		src = ex.Request
	}
	r := src.Clone(src.Context())
	r.Body = http.NoBody
	return r
}

type failedReader struct{ err error }

func (r failedReader) Read([]byte) (int, error) { return 0, r.err }
