package engine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
)

// RequestEditor mutates a fully built request before it is sent, for
// example to add credentials.
type RequestEditor func(ctx context.Context, req *http.Request) error

type engineCfg struct {
	transport Transport
	codec     Codec
	logger    *slog.Logger
	tracer    trace.Tracer
	editors   []RequestEditor
	validate  *validator.Validate
}

// Option configures an Engine.
type Option func(cfg *engineCfg) error

// WithTransport replaces the default HTTPTransport.
func WithTransport(t Transport) Option {
	return func(cfg *engineCfg) error {
		if t == nil {
			return errors.New("nil transport")
		}
		cfg.transport = t
		return nil
	}
}

// WithHTTPClient sends requests through c.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *engineCfg) error {
		if c == nil {
			return errors.New("nil http client")
		}
		cfg.transport = NewHTTPTransport(c)
		return nil
	}
}

func WithCodec(c Codec) Option {
	return func(cfg *engineCfg) error {
		if c == nil {
			return errors.New("nil codec")
		}
		cfg.codec = c
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineCfg) error {
		if l == nil {
			return errors.New("nil logger")
		}
		cfg.logger = l
		return nil
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(cfg *engineCfg) error {
		if t == nil {
			return errors.New("nil tracer")
		}
		cfg.tracer = t
		return nil
	}
}

// WithRequestEditor appends an editor. Editors run in order after the
// request is built.
func WithRequestEditor(fn RequestEditor) Option {
	return func(cfg *engineCfg) error {
		if fn == nil {
			return errors.New("nil request editor")
		}
		cfg.editors = append(cfg.editors, fn)
		return nil
	}
}

// WithEntityValidation checks struct request entities and complex body parts
// against their `validate` tags before sending.
func WithEntityValidation() Option {
	return func(cfg *engineCfg) error {
		cfg.validate = validator.New(validator.WithRequiredStructEnabled())
		return nil
	}
}
