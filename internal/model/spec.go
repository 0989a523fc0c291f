package model

import "slices"

type Spec struct {
	Info       Info
	Servers    []Server
	Operations []Operation
	Security   []SecurityScheme
	// DefaultSecurity applies to operations that declare none.
	DefaultSecurity []SecurityRequirement
}

// Operation returns the operation with the given ID.
func (s *Spec) Operation(id string) (*Operation, bool) {
	for i := range s.Operations {
		if s.Operations[i].ID == id {
			return &s.Operations[i], true
		}
	}
	return nil, false
}

// OperationIDs returns all operation IDs in document order.
func (s *Spec) OperationIDs() []string {
	ids := make([]string, 0, len(s.Operations))
	for _, op := range s.Operations {
		ids = append(ids, op.ID)
	}
	return ids
}

// SecurityScheme returns the scheme with the given name.
func (s *Spec) SecurityScheme(name string) (*SecurityScheme, bool) {
	i := slices.IndexFunc(s.Security, func(ss SecurityScheme) bool { return ss.Name == name })
	if i < 0 {
		return nil, false
	}
	return &s.Security[i], true
}

// SecurityFor returns the requirements that apply to an operation.
func (s *Spec) SecurityFor(op *Operation) []SecurityRequirement {
	if op.Security != nil {
		return op.Security
	}
	return s.DefaultSecurity
}

type Info struct {
	Title       string
	Description string
	Version     string
}

type Server struct {
	URL         string
	Description string
}
