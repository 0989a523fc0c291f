// Package engine executes contract-bound HTTP operations: it validates an
// operation, builds the wire request, sends it through a Transport and
// interprets the response against the operation's response definitions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kolah/courier/contract"
)

// Engine is immutable after New and safe for concurrent use.
type Engine struct {
	baseURL   *url.URL
	transport Transport
	codec     Codec
	logger    *slog.Logger
	tracer    trace.Tracer
	editors   []RequestEditor
	validate  *validator.Validate
}

// New creates an engine that resolves operation paths against baseURL.
func New(baseURL string, opts ...Option) (*Engine, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", baseURL)
	}

	cfg := &engineCfg{
		transport: NewHTTPTransport(http.DefaultClient),
		codec:     JSONCodec{},
		logger:    slog.New(slog.DiscardHandler),
		tracer:    noop.Tracer{},
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		baseURL:   u,
		transport: cfg.transport,
		codec:     cfg.codec,
		logger:    cfg.logger,
		tracer:    cfg.tracer,
		editors:   cfg.editors,
		validate:  cfg.validate,
	}, nil
}

// BaseURL returns a copy of the base URL.
func (e *Engine) BaseURL() *url.URL {
	u := *e.baseURL
	return &u
}

// Exchange sends the operation and interprets the response. It returns an
// error only when no response was obtained: a *ValidationError, a
// *ConfigError or an *IOError. Every response, conforming or not, is
// returned as a Response whose Outcome tells them apart.
func (e *Engine) Exchange(ctx context.Context, op *contract.Operation) (*Response, error) {
	if op == nil {
		return nil, &ConfigError{Part: "operation", Reason: "nil operation"}
	}

	ctx, span := e.tracer.Start(ctx, "courier.Engine.Exchange", trace.WithAttributes(
		attribute.String("operation", op.Description()),
		attribute.String("http.method", string(op.Method())),
	))
	defer span.End()

	if err := e.check(op); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req, err := e.buildRequest(ctx, op)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	for _, edit := range e.editors {
		if err := edit(ctx, req); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, &ConfigError{Operation: op.Description(), Part: "request editor", Reason: "editor failed", Err: err}
		}
	}

	info := requestInfo(req)
	start := time.Now()
	e.logger.DebugContext(ctx, "sending request",
		"operation", op.Description(),
		"method", info.Method,
		"url", info.URL,
	)

	ex, err := e.transport.Send(ctx, req)
	if err == nil && (ex == nil || ex.Response == nil) {
		err = errors.New("transport returned no response")
	}
	if err != nil {
		e.logger.DebugContext(ctx, "request failed",
			"operation", op.Description(),
			"url", info.URL,
			"duration", time.Since(start),
			"error", err,
		)
		span.SetStatus(codes.Error, err.Error())
		return nil, &IOError{Request: info, Err: err}
	}
	if ex.Request != nil {
		info = requestInfo(ex.Request)
	}

	resp := e.interpret(ctx, op, info, ex.Response)

	span.SetAttributes(
		attribute.Int("http.status_code", resp.StatusCode),
		attribute.String("courier.outcome", resp.Outcome.String()),
	)
	if resp.Outcome != OutcomeDefined {
		span.SetStatus(codes.Error, resp.Reason)
	}
	e.logger.DebugContext(ctx, "received response",
		"operation", op.Description(),
		"url", info.URL,
		"status", resp.StatusCode,
		"content_type", resp.ContentType,
		"outcome", resp.Outcome.String(),
		"duration", time.Since(start),
	)

	return resp, nil
}

// Execute is Exchange for callers that only accept defined responses.
// Incompatible responses become *IncompatibleResponseError and incomplete
// ones *IOError.
func (e *Engine) Execute(ctx context.Context, op *contract.Operation) (*Response, error) {
	resp, err := e.Exchange(ctx, op)
	if err != nil {
		return nil, err
	}
	switch resp.Outcome {
	case OutcomeDefined:
		return resp, nil
	case OutcomeIncomplete:
		return nil, &IOError{Request: resp.Request, Response: resp, Err: resp.Cause}
	default:
		return nil, &IncompatibleResponseError{Response: resp}
	}
}

// Call executes op and returns the entity as T. A no-content response yields
// the zero T.
func Call[T any](ctx context.Context, e *Engine, op *contract.Operation) (T, error) {
	var zero T
	resp, err := e.Execute(ctx, op)
	if err != nil {
		return zero, err
	}
	if resp.Entity == nil {
		return zero, nil
	}
	v, ok := resp.Entity.(T)
	if !ok {
		if closer, isStream := resp.Entity.(interface{ Close() error }); isStream {
			closer.Close()
		}
		return zero, &ConfigError{
			Operation: op.Description(),
			Part:      "result",
			Reason:    fmt.Sprintf("entity is %T, not %s", resp.Entity, reflect.TypeFor[T]()),
		}
	}
	return v, nil
}
