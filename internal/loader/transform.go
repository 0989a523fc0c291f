package loader

import (
	"slices"
	"strings"

	"github.com/kolah/courier/internal/model"
	"github.com/kolah/courier/internal/naming"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"github.com/pb33f/libopenapi/orderedmap"
	"go.yaml.in/yaml/v4"
)

// StreamExtension marks a response whose body is handed over unread.
const StreamExtension = "x-courier-stream"

// maxSchemaDepth bounds inlining of deeply nested, non-recursive schemas.
const maxSchemaDepth = 32

type transformer struct {
	// visiting holds references currently being inlined.
	visiting map[string]bool
	depth    int
}

func Transform(result *Result) (*model.Spec, error) {
	doc := result.Document.Model

	t := &transformer{visiting: make(map[string]bool)}

	spec := &model.Spec{
		Info:            transformInfo(doc.Info),
		Servers:         transformServers(doc.Servers),
		DefaultSecurity: transformRequirements(doc.Security),
	}
	if spec.DefaultSecurity == nil {
		spec.DefaultSecurity = []model.SecurityRequirement{}
	}

	if doc.Paths != nil && doc.Paths.PathItems != nil {
		for pathStr, pathItem := range doc.Paths.PathItems.FromOldest() {
			spec.Operations = append(spec.Operations, t.transformPath(pathStr, pathItem)...)
		}
	}

	if doc.Components != nil && doc.Components.SecuritySchemes != nil {
		for name, scheme := range doc.Components.SecuritySchemes.FromOldest() {
			spec.Security = append(spec.Security, transformSecurityScheme(name, scheme))
		}
	}

	return spec, nil
}

func transformInfo(info *base.Info) model.Info {
	if info == nil {
		return model.Info{}
	}
	return model.Info{
		Title:       info.Title,
		Description: info.Description,
		Version:     info.Version,
	}
}

func transformServers(servers []*v3.Server) []model.Server {
	var result []model.Server
	for _, s := range servers {
		result = append(result, model.Server{
			URL:         s.URL,
			Description: s.Description,
		})
	}
	return result
}

func (t *transformer) transformPath(pathStr string, pathItem *v3.PathItem) []model.Operation {
	var ops []model.Operation

	methods := []struct {
		method model.Method
		op     *v3.Operation
	}{
		{model.MethodGet, pathItem.Get},
		{model.MethodPost, pathItem.Post},
		{model.MethodPut, pathItem.Put},
		{model.MethodDelete, pathItem.Delete},
		{model.MethodPatch, pathItem.Patch},
		{model.MethodHead, pathItem.Head},
		{model.MethodOptions, pathItem.Options},
		{model.MethodTrace, pathItem.Trace},
	}

	for _, m := range methods {
		if m.op == nil {
			continue
		}
		ops = append(ops, t.transformOperation(m.method, pathStr, pathItem.Parameters, m.op))
	}

	return ops
}

func (t *transformer) transformOperation(method model.Method, path string, shared []*v3.Parameter, op *v3.Operation) model.Operation {
	operation := model.Operation{
		ID:          op.OperationId,
		Method:      method,
		Path:        path,
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Deprecated:  boolPtr(op.Deprecated),
	}
	if operation.ID == "" {
		operation.ID = naming.OperationID(string(method), path)
		operation.DerivedID = true
	}

	// Operation-level parameters override path-level ones with the same
	// name and location.
	for _, p := range op.Parameters {
		operation.Parameters = append(operation.Parameters, t.transformParameter(p))
	}
	for _, p := range shared {
		param := t.transformParameter(p)
		overridden := slices.ContainsFunc(operation.Parameters, func(o model.Parameter) bool {
			return o.Name == param.Name && o.In == param.In
		})
		if !overridden {
			operation.Parameters = append(operation.Parameters, param)
		}
	}

	if op.RequestBody != nil {
		operation.RequestBody = t.transformRequestBody(op.RequestBody)
	}

	if op.Responses != nil {
		if op.Responses.Codes != nil {
			for code, resp := range op.Responses.Codes.FromOldest() {
				operation.Responses = append(operation.Responses, t.transformResponse(code, resp))
			}
		}
		if op.Responses.Default != nil {
			operation.Responses = append(operation.Responses, t.transformResponse("default", op.Responses.Default))
		}
	}

	// A nil slice defers to the document's security; an explicit empty
	// list disables it.
	if op.Security != nil {
		operation.Security = transformRequirements(op.Security)
		if operation.Security == nil {
			operation.Security = []model.SecurityRequirement{}
		}
	}

	return operation
}

func transformRequirements(reqs []*base.SecurityRequirement) []model.SecurityRequirement {
	var result []model.SecurityRequirement
	for _, secReq := range reqs {
		if secReq == nil || secReq.Requirements == nil {
			continue
		}
		for name, scopes := range secReq.Requirements.FromOldest() {
			result = append(result, model.SecurityRequirement{
				Name:   name,
				Scopes: scopes,
			})
		}
	}
	return result
}

func (t *transformer) transformParameter(p *v3.Parameter) model.Parameter {
	param := model.Parameter{
		Name:        p.Name,
		In:          model.ParameterLocation(strings.ToLower(p.In)),
		Description: p.Description,
		Required:    boolPtr(p.Required),
		Deprecated:  p.Deprecated,
	}
	// Path parameters are always required.
	if param.In == model.LocationPath {
		param.Required = true
	}

	if p.Schema != nil {
		param.Schema = t.transformSchemaProxy(p.Schema)
	} else if p.Content != nil {
		for _, content := range p.Content.FromOldest() {
			if content.Schema != nil {
				param.Schema = t.transformSchemaProxy(content.Schema)
				break
			}
		}
	}

	return param
}

func (t *transformer) transformRequestBody(rb *v3.RequestBody) *model.RequestBody {
	body := &model.RequestBody{
		Description: rb.Description,
		Required:    boolPtr(rb.Required),
	}

	if rb.Content != nil {
		for mediaType, content := range rb.Content.FromOldest() {
			mtc := model.MediaTypeContent{MediaType: mediaType}
			if content.Schema != nil {
				mtc.Schema = t.transformSchemaProxy(content.Schema)
			}
			body.Content = append(body.Content, mtc)
		}
	}

	return body
}

func (t *transformer) transformResponse(code string, resp *v3.Response) model.Response {
	response := model.Response{
		StatusCode:  code,
		Description: resp.Description,
		Stream:      flagExtension(resp.Extensions, StreamExtension),
	}

	if resp.Content != nil {
		for mediaType, content := range resp.Content.FromOldest() {
			mtc := model.MediaTypeContent{MediaType: mediaType}
			if content.Schema != nil {
				mtc.Schema = t.transformSchemaProxy(content.Schema)
			}
			response.Content = append(response.Content, mtc)
		}
	}

	return response
}

func (t *transformer) transformSchemaProxy(proxy *base.SchemaProxy) *model.Schema {
	if proxy == nil {
		return nil
	}

	ref := proxy.GetReference()
	if ref != "" {
		if t.visiting[ref] {
			return &model.Schema{Name: refName(ref), Ref: ref}
		}
		t.visiting[ref] = true
		defer delete(t.visiting, ref)
	}
	if t.depth >= maxSchemaDepth {
		return &model.Schema{Ref: ref}
	}
	t.depth++
	defer func() { t.depth-- }()

	schema := t.transformSchema(refName(ref), proxy.Schema())
	if schema != nil && ref != "" {
		schema.Ref = ref
	}
	return schema
}

func (t *transformer) transformSchema(name string, s *base.Schema) *model.Schema {
	if s == nil {
		return nil
	}

	schema := &model.Schema{
		Name:        name,
		Description: s.Description,
		Format:      s.Format,
		Required:    slices.Clone(s.Required),
	}

	for _, typ := range s.Type {
		if typ != string(model.TypeNull) {
			schema.Type = model.SchemaType(typ)
			break
		}
	}

	for _, e := range s.Enum {
		if e != nil {
			schema.Enum = append(schema.Enum, e.Value)
		}
	}

	if s.Properties != nil {
		for propName, propProxy := range s.Properties.FromOldest() {
			schema.Properties = append(schema.Properties, model.Property{
				Name:   propName,
				Schema: t.transformSchemaProxy(propProxy),
			})
		}
	}

	if s.Items != nil && s.Items.A != nil {
		schema.Items = t.transformSchemaProxy(s.Items.A)
	}

	// allOf members contribute their properties and required lists.
	for _, member := range s.AllOf {
		merged := t.transformSchemaProxy(member)
		if merged == nil {
			continue
		}
		if schema.Type == "" {
			schema.Type = merged.Type
		}
		if schema.Format == "" {
			schema.Format = merged.Format
		}
		for _, p := range merged.Properties {
			if schema.Property(p.Name) == nil {
				schema.Properties = append(schema.Properties, p)
			}
		}
		for _, r := range merged.Required {
			if !slices.Contains(schema.Required, r) {
				schema.Required = append(schema.Required, r)
			}
		}
	}

	if schema.Type == "" && len(schema.Properties) > 0 {
		schema.Type = model.TypeObject
	}

	return schema
}

// flagExtension reports whether a boolean extension is set to true.
func flagExtension(extensions *orderedmap.Map[string, *yaml.Node], key string) bool {
	if extensions == nil {
		return false
	}
	for pair := extensions.First(); pair != nil; pair = pair.Next() {
		if pair.Key() != key {
			continue
		}
		node := pair.Value()
		return node != nil && node.Kind == yaml.ScalarNode && node.Value == "true"
	}
	return false
}

func transformSecurityScheme(name string, scheme *v3.SecurityScheme) model.SecurityScheme {
	return model.SecurityScheme{
		Name:         name,
		Type:         model.SecuritySchemeType(scheme.Type),
		Description:  scheme.Description,
		In:           scheme.In,
		ParamName:    scheme.Name,
		Scheme:       strings.ToLower(scheme.Scheme),
		BearerFormat: scheme.BearerFormat,
	}
}

func refName(ref string) string {
	if ref == "" {
		return ""
	}
	return ref[strings.LastIndex(ref, "/")+1:]
}

func boolPtr(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
