package engine

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracedReader spans the reads of a body: the span starts at the first Read
// and ends at the first error or on Close.
type tracedReader struct {
	traceCtx context.Context
	name     string
	span     trace.Span
	tracer   trace.Tracer

	reads     int
	totalData int64
	ended     bool
	r         io.Reader
}

func newTracedReader(ctx context.Context, tracer trace.Tracer, r io.Reader, name string) *tracedReader {
	return &tracedReader{
		traceCtx: ctx,
		name:     name,
		tracer:   tracer,
		r:        r,
	}
}

func (r *tracedReader) Read(p []byte) (int, error) {
	if r.reads == 0 && !r.ended {
		_, r.span = r.tracer.Start(r.traceCtx, r.name)
	}

	n, err := r.r.Read(p)
	if !r.ended {
		r.reads++
		r.totalData += int64(n)

		if err != nil {
			if errors.Is(err, io.EOF) {
				r.end(codes.Ok, "")
			} else {
				r.end(codes.Error, err.Error())
			}
		}
	}

	return n, err
}

func (r *tracedReader) end(code codes.Code, description string) {
	if r.ended || r.span == nil {
		r.ended = true
		return
	}
	r.span.SetAttributes(
		attribute.Int("reads", r.reads),
		attribute.Int64("bytes_read", r.totalData),
	)
	r.span.SetStatus(code, description)
	r.span.End()
	r.ended = true
}

func (r *tracedReader) Close() error {
	// a reader closed before EOF still gets its span ended.
	r.end(codes.Ok, "closed")
	closer, ok := r.r.(io.Closer)
	if ok {
		return closer.Close()
	}
	return nil
}
