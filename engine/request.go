package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/mediatype"
	"github.com/kolah/courier/internal/serialize"
)

// buildRequest resolves the path, attaches query, header and cookie
// parameters, negotiates Accept and encodes the body.
func (e *Engine) buildRequest(ctx context.Context, op *contract.Operation) (*http.Request, error) {
	u := e.resolveURL(op)

	req, err := http.NewRequestWithContext(ctx, string(op.Method()), u.String(), nil)
	if err != nil {
		return nil, &ConfigError{Operation: op.Description(), Part: "request", Reason: "cannot build request", Err: err}
	}

	for _, p := range op.ParametersIn(contract.LocationHeader) {
		serialize.Form(p.Name, p.Value, req.Header.Add)
	}
	for _, p := range op.ParametersIn(contract.LocationCookie) {
		serialize.Form(p.Name, p.Value, func(name, value string) {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		})
	}
	if accept := mediatype.Accept(op.ContentTypes()); accept != "" {
		req.Header.Add("Accept", accept)
	}

	body, contentType, err := e.encodeBody(op)
	if err != nil {
		var readErr *bodyReadError
		if errors.As(err, &readErr) {
			if body := op.Body(); body != nil && body.ContentType != "" {
				req.Header.Set("Content-Type", body.ContentType)
			}
			return nil, &IOError{Request: requestInfo(req), Err: readErr.err}
		}
		return nil, err
	}
	if body == nil {
		return req, nil
	}

	withBody, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, &ConfigError{Operation: op.Description(), Part: "request", Reason: "cannot build request", Err: err}
	}
	withBody.Header = req.Header
	if contentType != "" {
		withBody.Header.Set("Content-Type", contentType)
	}
	return withBody, nil
}

// resolveURL joins the expanded path template onto the base URL and appends
// the query parameters.
func (e *Engine) resolveURL(op *contract.Operation) *url.URL {
	u := *e.baseURL

	rawPath := strings.TrimSuffix(u.EscapedPath(), "/") + expandPath(op)
	if path, err := url.PathUnescape(rawPath); err == nil {
		u.Path = path
		u.RawPath = rawPath
	}

	query := u.Query()
	for _, p := range op.ParametersIn(contract.LocationQuery) {
		serialize.Form(p.Name, p.Value, query.Add)
	}
	u.RawQuery = query.Encode()
	return &u
}

// expandPath substitutes every {name} placeholder with the simple style
// value of the path parameter and escapes each segment.
func expandPath(op *contract.Operation) string {
	segments := strings.Split(op.Path(), "/")
	for i, segment := range segments {
		if !strings.Contains(segment, "{") {
			continue
		}
		expanded := segment
		for _, name := range contract.Placeholders(segment) {
			value := ""
			if p, ok := op.Parameter(name, contract.LocationPath); ok {
				value = serialize.Simple(p.Value)
			}
			expanded = strings.Replace(expanded, "{"+name+"}", value, 1)
		}
		// commas are legal in segments and separate simple style values.
		segments[i] = strings.ReplaceAll(url.PathEscape(expanded), "%2C", ",")
	}
	path := strings.Join(segments, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// encodeBody returns the request body and its content type. A nil reader
// means the request has no body.
func (e *Engine) encodeBody(op *contract.Operation) (io.Reader, string, error) {
	body := op.Body()
	if body == nil || (!body.IsForm() && serialize.IsNil(body.Entity)) {
		if op.Method().RequiresBody() {
			return http.NoBody, "", nil
		}
		return nil, "", nil
	}

	if body.IsForm() {
		if mediatype.Essence(body.ContentType) == mediatype.FormURLEncoded {
			return e.encodeURLEncoded(op, body)
		}
		return e.encodeMultipart(op, body)
	}

	if mediatype.IsJSON(body.ContentType) {
		data, err := e.codec.Encode(body.Entity, body.ContentType)
		if err != nil {
			return nil, "", &ConfigError{Operation: op.Description(), Part: "request body", Reason: "cannot encode entity", Err: err}
		}
		return bytes.NewReader(data), body.ContentType, nil
	}

	switch entity := body.Entity.(type) {
	case []byte:
		return bytes.NewReader(entity), body.ContentType, nil
	case io.Reader:
		return entity, body.ContentType, nil
	default:
		return strings.NewReader(serialize.Primitive(entity)), body.ContentType, nil
	}
}

func (e *Engine) encodeURLEncoded(op *contract.Operation, body *contract.RequestBody) (io.Reader, string, error) {
	values := url.Values{}
	for _, part := range body.Parts {
		if part.Kind != contract.PartPrimitive {
			return nil, "", &ConfigError{
				Operation: op.Description(),
				Part:      fmt.Sprintf("part %q", part.Name),
				Reason:    fmt.Sprintf("%s parts are not supported in %s bodies", part.Kind, mediatype.FormURLEncoded),
			}
		}
		serialize.Form(part.Name, part.Value, values.Add)
	}
	contentType := body.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = mediatype.FormURLEncoded
	}
	return strings.NewReader(values.Encode()), contentType, nil
}

// bodyReadError marks a failure to read caller supplied content while the
// body was being encoded.
type bodyReadError struct {
	err error
}

func (e *bodyReadError) Error() string {
	return e.err.Error()
}

func (e *bodyReadError) Unwrap() error {
	return e.err
}
