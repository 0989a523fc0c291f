// Package binding turns textual invocations (CLI arguments or batch file
// entries) into executable contract operations.
package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/mediatype"
	"github.com/kolah/courier/internal/model"
)

// Invocation is one call of an operation with textual arguments.
//
// Params keys are parameter names, optionally qualified with their location
// ("header:X-Trace") when several locations share a name. Body is inline
// JSON or text, or @path to read it from a file. Files maps multipart parts
// to file paths.
type Invocation struct {
	Operation string            `yaml:"operation" json:"operation"`
	Params    map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Body      string            `yaml:"body,omitempty" json:"body,omitempty"`
	Files     map[string]string `yaml:"files,omitempty" json:"files,omitempty"`
}

// ParseArgs parses name=value arguments into a parameter map.
func ParseArgs(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid argument %q (expected name=value)", arg)
		}
		params[name] = value
	}
	return params, nil
}

// Bind resolves an invocation against a model operation.
func Bind(op *model.Operation, inv Invocation) (*contract.Operation, error) {
	b := contract.New(contract.Method(op.Method), op.Path).ID(op.ID)

	used := make(map[string]bool, len(inv.Params))
	for _, p := range op.Parameters {
		raw, key, ok := lookup(inv.Params, p)
		param := contract.Parameter{
			Name:     p.Name,
			In:       contract.Location(p.In),
			Required: p.Required,
		}
		if ok {
			used[key] = true
			v, err := Coerce(raw, p.Schema)
			if err != nil {
				return nil, fmt.Errorf("%s parameter %q: %w", p.In, p.Name, err)
			}
			param.Value = v
		}
		b.Param(param)
	}
	if unknown := unused(inv.Params, used); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown parameters for %s: %s", op.ID, strings.Join(unknown, ", "))
	}

	if op.RequestBody != nil {
		body, err := bindBody(op.RequestBody, inv)
		if err != nil {
			return nil, err
		}
		b.Body(body)
	} else if inv.Body != "" || len(inv.Files) > 0 {
		return nil, fmt.Errorf("%s does not accept a request body", op.ID)
	}

	for _, r := range op.Responses {
		status, ok := contract.ParseStatusCode(r.StatusCode)
		if !ok {
			// Range keys such as 4XX have no concrete group.
			continue
		}
		if len(r.Content) == 0 {
			b.Response(status, "", contract.NoContent())
			continue
		}
		for _, c := range r.Content {
			b.Response(status, c.MediaType, ResultType(r, c.MediaType))
		}
	}

	return b.Build()
}

// ResultType maps a declared response content to the type it decodes into.
func ResultType(r model.Response, contentType string) contract.Type {
	switch {
	case r.Stream, mediatype.Essence(contentType) == mediatype.OctetStream:
		return contract.Stream()
	case mediatype.IsJSON(contentType):
		return contract.ValueType(nil)
	case mediatype.IsText(contentType):
		return contract.Text()
	}
	return contract.ValueType(nil)
}

func lookup(params map[string]string, p model.Parameter) (value, key string, ok bool) {
	key = string(p.In) + ":" + p.Name
	if value, ok = params[key]; ok {
		return value, key, true
	}
	value, ok = params[p.Name]
	return value, p.Name, ok
}

func unused(params map[string]string, used map[string]bool) []string {
	var names []string
	for k := range params {
		if !used[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// Coerce converts a textual value according to its schema. Arrays are
// comma separated; objects are JSON.
func Coerce(raw string, schema *model.Schema) (any, error) {
	if schema == nil {
		return raw, nil
	}
	switch schema.Type {
	case model.TypeInteger:
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case model.TypeNumber:
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case model.TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(raw))
	case model.TypeArray:
		if raw == "" {
			return []any{}, nil
		}
		items := strings.Split(raw, ",")
		values := make([]any, 0, len(items))
		for _, item := range items {
			v, err := Coerce(item, schema.Items)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	case model.TypeObject:
		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("expected a JSON object: %w", err)
		}
		return v, nil
	}
	if len(schema.Enum) > 0 && !slices.ContainsFunc(schema.Enum, func(e any) bool { return fmt.Sprint(e) == raw }) {
		return nil, fmt.Errorf("%q is not one of %v", raw, schema.Enum)
	}
	return raw, nil
}

func bindBody(rb *model.RequestBody, inv Invocation) (contract.RequestBody, error) {
	body := contract.RequestBody{Required: rb.Required}
	if len(rb.Content) == 0 {
		return body, errors.New("request body declares no content")
	}
	content := rb.Content[0]
	body.ContentType = content.MediaType

	raw, err := readBody(inv.Body)
	if err != nil {
		return body, err
	}

	switch mediatype.Essence(content.MediaType) {
	case mediatype.MultipartForm, mediatype.FormURLEncoded:
		parts, err := bindParts(content.Schema, raw, inv.Files)
		if err != nil {
			return body, err
		}
		if parts == nil && raw != nil {
			parts = []contract.BodyPart{}
		}
		body.Parts = parts
		return body, nil
	}

	if len(inv.Files) > 0 {
		return body, fmt.Errorf("files are only accepted by form bodies, not %s", content.MediaType)
	}
	if raw == nil {
		return body, nil
	}
	if mediatype.IsJSON(content.MediaType) {
		if !json.Valid(raw) {
			return body, errors.New("request body is not valid JSON")
		}
		body.Entity = json.RawMessage(raw)
		return body, nil
	}
	body.Entity = raw
	return body, nil
}

// bindParts builds form parts from a JSON object and file arguments, in
// schema property order followed by any remaining fields sorted by name.
func bindParts(schema *model.Schema, raw []byte, files map[string]string) ([]contract.BodyPart, error) {
	fields := map[string]any{}
	if raw != nil {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("form body must be a JSON object: %w", err)
		}
	}

	var names []string
	if schema != nil {
		for _, p := range schema.Properties {
			names = append(names, p.Name)
		}
	}
	var extra []string
	for name := range fields {
		if !slices.Contains(names, name) {
			extra = append(extra, name)
		}
	}
	for name := range files {
		if !slices.Contains(names, name) && !slices.Contains(extra, name) {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	var parts []contract.BodyPart
	for _, name := range names {
		if path, ok := files[name]; ok {
			a, err := LoadAttachment(path)
			if err != nil {
				return nil, fmt.Errorf("part %q: %w", name, err)
			}
			parts = append(parts, contract.AttachmentPart(name, a))
			continue
		}
		value, ok := fields[name]
		if !ok {
			continue
		}
		prop := schema.Property(name)
		switch {
		case prop.IsBinary():
			return nil, fmt.Errorf("part %q expects a file (use --file %s=@path)", name, name)
		case prop != nil && (prop.Type == model.TypeObject || prop.Type == model.TypeArray && prop.Items != nil && prop.Items.Type == model.TypeObject):
			parts = append(parts, contract.ComplexPart(name, value))
		default:
			if _, isMap := value.(map[string]any); isMap {
				parts = append(parts, contract.ComplexPart(name, value))
			} else {
				parts = append(parts, contract.PrimitivePart(name, value))
			}
		}
	}
	return parts, nil
}

// LoadAttachment reads a file argument. A leading @ is optional. The media
// type comes from the extension, falling back to content sniffing.
func LoadAttachment(path string) (contract.Attachment, error) {
	path = strings.TrimPrefix(path, "@")
	data, err := os.ReadFile(path)
	if err != nil {
		return contract.Attachment{}, err
	}
	mediaType := mime.TypeByExtension(filepath.Ext(path))
	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}
	return contract.NewAttachment(data, filepath.Base(path), mediaType)
}

func readBody(body string) ([]byte, error) {
	if body == "" {
		return nil, nil
	}
	if path, ok := strings.CutPrefix(body, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		return data, nil
	}
	return []byte(body), nil
}
