package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}/]+)\}`)

// Placeholders returns the names of the {name} placeholders of a path
// template, in order of appearance.
func Placeholders(path string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(path, -1) {
		names = append(names, m[1])
	}
	return names
}

// Builder assembles an Operation. Errors are collected and reported by Build.
type Builder struct {
	op   Operation
	errs []error
	seen map[paramKey]bool
}

// New starts an operation for the method and path template.
func New(method Method, path string) *Builder {
	return &Builder{
		op: Operation{
			method:   Method(strings.ToUpper(string(method))),
			path:     path,
			byStatus: make(map[StatusCode][]ResponseDefinition),
		},
		seen: make(map[paramKey]bool),
	}
}

func (b *Builder) ID(id string) *Builder {
	b.op.id = id
	b.op.description = id
	return b
}

// Param adds a parameter. The (name, location) pair must be unique; the same
// name may appear in several locations.
func (b *Builder) Param(p Parameter) *Builder {
	if p.Name == "" {
		b.errs = append(b.errs, errors.New("parameter name is required"))
		return b
	}
	if !p.In.valid() {
		b.errs = append(b.errs, fmt.Errorf("parameter %q: invalid location %q", p.Name, p.In))
		return b
	}
	key := paramKey{name: p.Name, in: p.In}
	if b.seen[key] {
		b.errs = append(b.errs, fmt.Errorf("duplicate %s parameter %q", p.In, p.Name))
		return b
	}
	b.seen[key] = true
	b.op.parameters = append(b.op.parameters, p)
	return b
}

// Params adds several parameters in order.
func (b *Builder) Params(ps ...Parameter) *Builder {
	for _, p := range ps {
		b.Param(p)
	}
	return b
}

func (b *Builder) Body(body RequestBody) *Builder {
	if b.op.body != nil {
		b.errs = append(b.errs, errors.New("request body already set"))
		return b
	}
	b.op.body = &body
	return b
}

// Response declares a response definition for the status group. Definitions
// keep their declaration order within and across groups.
func (b *Builder) Response(status StatusCode, contentType string, t Type) *Builder {
	if !status.valid() {
		b.errs = append(b.errs, fmt.Errorf("invalid status code %s", status))
		return b
	}
	if t.IsZero() {
		b.errs = append(b.errs, fmt.Errorf("response %s %q: result type is required", status, contentType))
		return b
	}
	def := ResponseDefinition{Status: status, ContentType: strings.TrimSpace(contentType), Type: t}
	b.op.responses = append(b.op.responses, def)
	b.op.byStatus[status] = append(b.op.byStatus[status], def)
	return b
}

// Build validates the collected description and returns the Operation.
func (b *Builder) Build() (*Operation, error) {
	errs := append([]error(nil), b.errs...)

	if b.op.method == "" {
		errs = append(errs, errors.New("method is required"))
	}
	if b.op.path == "" {
		errs = append(errs, errors.New("path is required"))
	}
	for _, name := range Placeholders(b.op.path) {
		if !b.seen[paramKey{name: name, in: LocationPath}] {
			errs = append(errs, fmt.Errorf("path placeholder {%s} has no path parameter", name))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid operation %s: %w", b.op.Description(), errors.Join(errs...))
	}

	op := b.op
	op.parameters = append([]Parameter(nil), b.op.parameters...)
	op.responses = append([]ResponseDefinition(nil), b.op.responses...)
	op.byStatus = make(map[StatusCode][]ResponseDefinition, len(b.op.byStatus))
	for k, v := range b.op.byStatus {
		op.byStatus[k] = append([]ResponseDefinition(nil), v...)
	}
	if b.op.body != nil {
		op.body = b.op.body.clone()
	}
	return &op, nil
}

// MustBuild is Build for statically known operations; it panics on error.
func (b *Builder) MustBuild() *Operation {
	op, err := b.Build()
	if err != nil {
		panic(err)
	}
	return op
}
