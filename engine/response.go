package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/mediatype"
)

type bodyReader struct {
	io.Reader
	io.Closer
}

// interpret matches the response against the operation's definitions and
// decodes it. The body is closed on every path except stream results.
func (e *Engine) interpret(ctx context.Context, op *contract.Operation, info RequestInfo, hr *http.Response) *Response {
	resp := &Response{
		Request:     info,
		StatusCode:  hr.StatusCode,
		Header:      hr.Header,
		ContentType: strings.TrimSpace(hr.Header.Get("Content-Type")),
	}

	raw := hr.Body
	if raw == nil {
		raw = http.NoBody
	}
	traced := newTracedReader(ctx, e.tracer, raw, "courier.ResponseBody")
	buffered := bufio.NewReader(traced)

	empty, err := isEmpty(buffered)
	if err != nil {
		traced.Close()
		return incomplete(resp, err)
	}

	def, ok := selectDefinition(op.Responses(hr.StatusCode), resp.ContentType, empty)
	if !ok {
		data, err := io.ReadAll(buffered)
		traced.Close()
		resp.Body = data
		if err != nil {
			return incomplete(resp, err)
		}
		return incompatible(resp, fmt.Sprintf("no response definition for status %d and content type %q", hr.StatusCode, resp.ContentType), nil)
	}
	resp.Definition = def

	switch def.Type.Kind() {
	case contract.KindNoContent:
		_, _ = io.Copy(io.Discard, buffered)
		traced.Close()
		resp.Outcome = OutcomeDefined
		return resp

	case contract.KindStream:
		resp.Entity = io.ReadCloser(bodyReader{Reader: buffered, Closer: traced})
		resp.Outcome = OutcomeDefined
		return resp
	}

	data, err := io.ReadAll(buffered)
	traced.Close()
	resp.Body = data
	if err != nil {
		return incomplete(resp, err)
	}

	switch {
	case mediatype.IsJSON(resp.ContentType):
		entity, err := e.codec.Decode(data, def.Type)
		if err != nil {
			return incompatible(resp, fmt.Sprintf("cannot decode body as %s", def.Type), err)
		}
		resp.Entity = entity
	case def.Type.Kind() == contract.KindText:
		resp.Entity = string(data)
	default:
		return incompatible(resp, fmt.Sprintf("cannot decode %q content as %s", resp.ContentType, def.Type), nil)
	}

	resp.Outcome = OutcomeDefined
	return resp
}

// selectDefinition picks the response definition that governs decoding.
//
// Candidates are the definitions of the exact status group, else of the
// default group. When every candidate expects no content and the body is
// empty, or when the response has no content type and a candidate expects
// no content, the response is void. Otherwise an exact content type match
// wins over a wildcard match, each in declaration order. As a last resort a
// JSON response is decoded against the only candidate of its group.
func selectDefinition(candidates []contract.ResponseDefinition, contentType string, empty bool) (contract.ResponseDefinition, bool) {
	if len(candidates) == 0 {
		return contract.ResponseDefinition{}, false
	}

	if empty && allNoContent(candidates) {
		return candidates[0], true
	}

	if contentType == "" {
		for _, c := range candidates {
			if c.Type.Kind() == contract.KindNoContent {
				return c, true
			}
		}
		return contract.ResponseDefinition{}, false
	}

	essence := mediatype.Essence(contentType)
	for _, c := range candidates {
		if c.ContentType != "" && mediatype.Essence(c.ContentType) == essence {
			return c, true
		}
	}
	for _, c := range candidates {
		if c.ContentType != "" && mediatype.Matches(contentType, c.ContentType) {
			return c, true
		}
	}

	if mediatype.IsJSON(contentType) && len(candidates) == 1 {
		return candidates[0], true
	}
	return contract.ResponseDefinition{}, false
}

func allNoContent(defs []contract.ResponseDefinition) bool {
	for _, d := range defs {
		if d.Type.Kind() != contract.KindNoContent {
			return false
		}
	}
	return true
}

// isEmpty peeks one byte without consuming it.
func isEmpty(r *bufio.Reader) (bool, error) {
	_, err := r.Peek(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func incompatible(resp *Response, reason string, cause error) *Response {
	resp.Outcome = OutcomeIncompatible
	resp.Reason = reason
	resp.Cause = cause
	resp.Entity = nil
	return resp
}

func incomplete(resp *Response, cause error) *Response {
	resp.Outcome = OutcomeIncomplete
	resp.Reason = "reading response body failed"
	resp.Cause = cause
	resp.Entity = nil
	return resp
}
