package model

// Schema is the subset of a JSON schema needed to coerce textual input into
// typed parameter and body values.
type Schema struct {
	Name        string
	Description string
	Type        SchemaType
	Format      string
	Properties  []Property
	Required    []string
	Items       *Schema
	Enum        []any
	Ref         string
}

// Property returns the schema of a named property.
func (s *Schema) Property(name string) *Schema {
	if s == nil {
		return nil
	}
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Schema
		}
	}
	return nil
}

// IsBinary reports whether values of the schema are file contents.
func (s *Schema) IsBinary() bool {
	if s == nil {
		return false
	}
	return s.Type == TypeString && s.Format == "binary"
}

type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
	TypeNull    SchemaType = "null"
)

type Property struct {
	Name   string
	Schema *Schema
}

type SecurityScheme struct {
	Name         string
	Type         SecuritySchemeType
	Description  string
	In           string
	ParamName    string
	Scheme       string
	BearerFormat string
}

type SecuritySchemeType string

const (
	SecurityTypeAPIKey        SecuritySchemeType = "apiKey"
	SecurityTypeHTTP          SecuritySchemeType = "http"
	SecurityTypeOAuth2        SecuritySchemeType = "oauth2"
	SecurityTypeOpenIDConnect SecuritySchemeType = "openIdConnect"
	SecurityTypeMutualTLS     SecuritySchemeType = "mutualTLS"
)
