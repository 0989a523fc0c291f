package model

type Operation struct {
	ID          string
	Method      Method
	Path        string
	Summary     string
	Description string
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response
	Deprecated  bool
	Security    []SecurityRequirement
	// DerivedID is set when the document had no operationId and ID was
	// derived from the method and path.
	DerivedID bool
}

// Parameter returns the parameter with the given name. When several
// locations share the name, path wins over query, header and cookie.
func (o *Operation) Parameter(name string) (Parameter, bool) {
	var found *Parameter
	for i := range o.Parameters {
		p := &o.Parameters[i]
		if p.Name != name {
			continue
		}
		if found == nil || locationRank(p.In) < locationRank(found.In) {
			found = p
		}
	}
	if found == nil {
		return Parameter{}, false
	}
	return *found, true
}

func locationRank(l ParameterLocation) int {
	switch l {
	case LocationPath:
		return 0
	case LocationQuery:
		return 1
	case LocationHeader:
		return 2
	}
	return 3
}

type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodDelete  Method = "DELETE"
	MethodPatch   Method = "PATCH"
	MethodHead    Method = "HEAD"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodQuery   Method = "QUERY" // OpenAPI 3.2
)

type ParameterLocation string

const (
	LocationPath   ParameterLocation = "path"
	LocationQuery  ParameterLocation = "query"
	LocationHeader ParameterLocation = "header"
	LocationCookie ParameterLocation = "cookie"
)

type Parameter struct {
	Name        string
	In          ParameterLocation
	Description string
	Required    bool
	Deprecated  bool
	Schema      *Schema
}

type RequestBody struct {
	Description string
	Required    bool
	Content     []MediaTypeContent
}

type MediaTypeContent struct {
	MediaType string
	Schema    *Schema
}

type Response struct {
	StatusCode  string
	Description string
	Content     []MediaTypeContent
	// Stream marks a response whose body is handed to the caller unread
	// (x-courier-stream).
	Stream bool
}

type SecurityRequirement struct {
	Name   string
	Scopes []string
}
