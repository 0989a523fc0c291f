package contract

import (
	"net/http"
	"slices"
	"strings"
)

type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
	MethodTrace   Method = http.MethodTrace
	MethodQuery   Method = "QUERY" // OpenAPI 3.2
)

// RequiresBody reports whether requests with this method always carry a body,
// even an empty one.
func (m Method) RequiresBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return true
	}
	return false
}

type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationCookie Location = "cookie"
)

func (l Location) valid() bool {
	switch l {
	case LocationPath, LocationQuery, LocationHeader, LocationCookie:
		return true
	}
	return false
}

// Parameter is one named argument of an operation invocation.
// Value may be a scalar, a slice or array, a struct, or nil.
type Parameter struct {
	Name     string
	In       Location
	Required bool
	Value    any
}

func PathParam(name string, value any) Parameter {
	return Parameter{Name: name, In: LocationPath, Required: true, Value: value}
}

func QueryParam(name string, value any, required bool) Parameter {
	return Parameter{Name: name, In: LocationQuery, Required: required, Value: value}
}

func HeaderParam(name string, value any, required bool) Parameter {
	return Parameter{Name: name, In: LocationHeader, Required: required, Value: value}
}

func CookieParam(name string, value any, required bool) Parameter {
	return Parameter{Name: name, In: LocationCookie, Required: required, Value: value}
}

type paramKey struct {
	name string
	in   Location
}

// RequestBody describes the body of an invocation. A non-nil Parts turns the
// body into a multipart or urlencoded form descriptor and Entity is ignored.
type RequestBody struct {
	ContentType string
	Required    bool
	Entity      any
	Parts       []BodyPart
}

// IsForm reports whether the body is a multipart/urlencoded descriptor.
func (b *RequestBody) IsForm() bool {
	return b != nil && b.Parts != nil
}

func (b *RequestBody) clone() *RequestBody {
	c := *b
	c.Parts = slices.Clone(b.Parts)
	return &c
}

// ResponseDefinition declares one acceptable response shape. An empty
// ContentType means the response carries no body.
type ResponseDefinition struct {
	Status      StatusCode
	ContentType string
	Type        Type
}

// Operation is the resolved description of a single API operation
// invocation. It is built with a Builder and is read-only afterwards.
type Operation struct {
	id          string
	method      Method
	path        string
	parameters  []Parameter
	body        *RequestBody
	responses   []ResponseDefinition
	byStatus    map[StatusCode][]ResponseDefinition
	description string
}

func (o *Operation) ID() string {
	return o.id
}

func (o *Operation) Method() Method {
	return o.method
}

func (o *Operation) Path() string {
	return o.path
}

// Description returns a short human readable label, "METHOD /path" or the
// operation ID when one was given.
func (o *Operation) Description() string {
	if o.description != "" {
		return o.description
	}
	return string(o.method) + " " + o.path
}

// Parameters returns a copy of the parameters in declaration order.
func (o *Operation) Parameters() []Parameter {
	return slices.Clone(o.parameters)
}

// ParametersIn returns the parameters declared for a location, in order.
func (o *Operation) ParametersIn(in Location) []Parameter {
	var result []Parameter
	for _, p := range o.parameters {
		if p.In == in {
			result = append(result, p)
		}
	}
	return result
}

// Parameter looks up a parameter by name and location.
func (o *Operation) Parameter(name string, in Location) (Parameter, bool) {
	for _, p := range o.parameters {
		if p.Name == name && p.In == in {
			return p, true
		}
	}
	return Parameter{}, false
}

// Body returns a copy of the request body, or nil when there is none.
func (o *Operation) Body() *RequestBody {
	if o.body == nil {
		return nil
	}
	return o.body.clone()
}

// Definitions returns every response definition in declaration order.
func (o *Operation) Definitions() []ResponseDefinition {
	return slices.Clone(o.responses)
}

// Responses returns the definitions declared for the status code, falling
// back to the Default group. It returns nil when neither exists.
func (o *Operation) Responses(code int) []ResponseDefinition {
	if defs, ok := o.byStatus[Status(code)]; ok {
		return slices.Clone(defs)
	}
	return slices.Clone(o.byStatus[Default])
}

// ContentTypes returns the distinct non-empty response content types in
// declaration order.
func (o *Operation) ContentTypes() []string {
	seen := make(map[string]bool)
	var result []string
	for _, d := range o.responses {
		ct := strings.TrimSpace(d.ContentType)
		if ct == "" || seen[ct] {
			continue
		}
		seen[ct] = true
		result = append(result, ct)
	}
	return result
}
