package binding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kolah/courier/contract"
	"github.com/kolah/courier/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	intSchema    = &model.Schema{Type: model.TypeInteger}
	stringSchema = &model.Schema{Type: model.TypeString}
)

func listPets() *model.Operation {
	return &model.Operation{
		ID:     "listPets",
		Method: model.MethodGet,
		Path:   "/owners/{ownerId}/pets",
		Parameters: []model.Parameter{
			{Name: "ownerId", In: model.LocationPath, Required: true, Schema: intSchema},
			{Name: "limit", In: model.LocationQuery, Schema: intSchema},
			{Name: "tags", In: model.LocationQuery, Schema: &model.Schema{Type: model.TypeArray, Items: stringSchema}},
			{Name: "trace", In: model.LocationHeader, Required: true, Schema: stringSchema},
			{Name: "trace", In: model.LocationQuery, Schema: stringSchema},
		},
		Responses: []model.Response{
			{StatusCode: "200", Content: []model.MediaTypeContent{{MediaType: "application/json"}}},
			{StatusCode: "204"},
			{StatusCode: "4XX", Content: []model.MediaTypeContent{{MediaType: "application/json"}}},
			{StatusCode: "default", Content: []model.MediaTypeContent{{MediaType: "text/plain"}}},
		},
	}
}

func TestParseArgs(t *testing.T) {
	params, err := ParseArgs([]string{"limit=5", "q=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"limit": "5", "q": "a=b", "empty": ""}, params)

	_, err = ParseArgs([]string{"novalue"})
	assert.Error(t, err)
	_, err = ParseArgs([]string{"=x"})
	assert.Error(t, err)
}

func TestBindParameters(t *testing.T) {
	op, err := Bind(listPets(), Invocation{Params: map[string]string{
		"ownerId":      "42",
		"tags":         "a,b",
		"header:trace": "t-1",
		"query:trace":  "q-1",
	}})
	require.NoError(t, err)

	owner, ok := op.Parameter("ownerId", contract.LocationPath)
	require.True(t, ok)
	assert.Equal(t, int64(42), owner.Value)
	assert.True(t, owner.Required)

	tags, _ := op.Parameter("tags", contract.LocationQuery)
	assert.Equal(t, []any{"a", "b"}, tags.Value)

	limit, ok := op.Parameter("limit", contract.LocationQuery)
	require.True(t, ok, "absent parameters are still declared")
	assert.Nil(t, limit.Value)

	header, _ := op.Parameter("trace", contract.LocationHeader)
	assert.Equal(t, "t-1", header.Value)
	query, _ := op.Parameter("trace", contract.LocationQuery)
	assert.Equal(t, "q-1", query.Value)
}

func TestBindUnqualifiedNameFillsEveryLocation(t *testing.T) {
	op, err := Bind(listPets(), Invocation{Params: map[string]string{"ownerId": "1", "trace": "x"}})
	require.NoError(t, err)

	header, _ := op.Parameter("trace", contract.LocationHeader)
	query, _ := op.Parameter("trace", contract.LocationQuery)
	assert.Equal(t, "x", header.Value)
	assert.Equal(t, "x", query.Value)
}

func TestBindErrors(t *testing.T) {
	tests := []struct {
		name string
		inv  Invocation
	}{
		{"bad integer", Invocation{Params: map[string]string{"ownerId": "abc"}}},
		{"unknown parameter", Invocation{Params: map[string]string{"ownerId": "1", "color": "red"}}},
		{"body on bodyless operation", Invocation{Params: map[string]string{"ownerId": "1"}, Body: `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(listPets(), tt.inv)
			assert.Error(t, err)
		})
	}
}

func TestBindResponses(t *testing.T) {
	op, err := Bind(listPets(), Invocation{Params: map[string]string{"ownerId": "1"}})
	require.NoError(t, err)

	defs := op.Definitions()
	require.Len(t, defs, 3, "range keys are skipped")

	assert.Equal(t, contract.Status(200), defs[0].Status)
	assert.Equal(t, contract.KindValue, defs[0].Type.Kind())

	assert.Equal(t, contract.Status(204), defs[1].Status)
	assert.Equal(t, "", defs[1].ContentType)
	assert.Equal(t, contract.KindNoContent, defs[1].Type.Kind())

	assert.Equal(t, contract.Default, defs[2].Status)
	assert.Equal(t, contract.KindText, defs[2].Type.Kind())
}

func TestResultType(t *testing.T) {
	tests := []struct {
		contentType string
		stream      bool
		expected    contract.TypeKind
	}{
		{"application/json", false, contract.KindValue},
		{"application/vnd.api+json", false, contract.KindValue},
		{"application/octet-stream", false, contract.KindStream},
		{"text/csv", false, contract.KindText},
		{"application/json", true, contract.KindStream},
		{"image/png", false, contract.KindValue},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got := ResultType(model.Response{Stream: tt.stream}, tt.contentType)
			assert.Equal(t, tt.expected, got.Kind())
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		schema   *model.Schema
		expected any
		wantErr  bool
	}{
		{"no schema", "x", nil, "x", false},
		{"integer", "7", intSchema, int64(7), false},
		{"number", "1.5", &model.Schema{Type: model.TypeNumber}, 1.5, false},
		{"boolean", "true", &model.Schema{Type: model.TypeBoolean}, true, false},
		{"integer array", "1,2", &model.Schema{Type: model.TypeArray, Items: intSchema}, []any{int64(1), int64(2)}, false},
		{"empty array", "", &model.Schema{Type: model.TypeArray}, []any{}, false},
		{"object", `{"a":1}`, &model.Schema{Type: model.TypeObject}, map[string]any{"a": float64(1)}, false},
		{"enum member", "cat", &model.Schema{Type: model.TypeString, Enum: []any{"cat", "dog"}}, "cat", false},
		{"enum violation", "cow", &model.Schema{Type: model.TypeString, Enum: []any{"cat", "dog"}}, nil, true},
		{"bad boolean", "maybe", &model.Schema{Type: model.TypeBoolean}, nil, true},
		{"bad object", "[1]", &model.Schema{Type: model.TypeObject}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.schema)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func createPet(mediaType string, schema *model.Schema) *model.Operation {
	return &model.Operation{
		ID:          "createPet",
		Method:      model.MethodPost,
		Path:        "/pets",
		RequestBody: &model.RequestBody{Required: true, Content: []model.MediaTypeContent{{MediaType: mediaType, Schema: schema}}},
		Responses:   []model.Response{{StatusCode: "201"}},
	}
}

func TestBindJSONBody(t *testing.T) {
	op, err := Bind(createPet("application/json", nil), Invocation{Body: `{"name":"Rex"}`})
	require.NoError(t, err)

	body := op.Body()
	require.NotNil(t, body)
	assert.Equal(t, "application/json", body.ContentType)
	assert.True(t, body.Required)
	assert.Equal(t, json.RawMessage(`{"name":"Rex"}`), body.Entity)

	_, err = Bind(createPet("application/json", nil), Invocation{Body: `{"name":`})
	assert.Error(t, err)

	op, err = Bind(createPet("application/json", nil), Invocation{})
	require.NoError(t, err)
	assert.Nil(t, op.Body().Entity, "missing bodies are left to request validation")
}

func TestBindBodyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pet.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain"), 0o600))

	op, err := Bind(createPet("text/plain", nil), Invocation{Body: "@" + path})
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), op.Body().Entity)

	_, err = Bind(createPet("text/plain", nil), Invocation{Body: "@" + path + ".missing"})
	assert.Error(t, err)
}

func TestBindMultipart(t *testing.T) {
	schema := &model.Schema{
		Type: model.TypeObject,
		Properties: []model.Property{
			{Name: "photo", Schema: &model.Schema{Type: model.TypeString, Format: "binary"}},
			{Name: "caption", Schema: stringSchema},
			{Name: "meta", Schema: &model.Schema{Type: model.TypeObject}},
			{Name: "tags", Schema: &model.Schema{Type: model.TypeArray, Items: stringSchema}},
		},
	}
	dir := t.TempDir()
	photo := filepath.Join(dir, "rex.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	op, err := Bind(createPet("multipart/form-data", schema), Invocation{
		Body:  `{"caption":"good boy","meta":{"age":3},"tags":["a","b"],"extra":1}`,
		Files: map[string]string{"photo": "@" + photo},
	})
	require.NoError(t, err)

	parts := op.Body().Parts
	require.Len(t, parts, 5)

	assert.Equal(t, "photo", parts[0].Name)
	assert.Equal(t, contract.PartAttachment, parts[0].Kind)
	a := parts[0].Value.(contract.Attachment)
	assert.Equal(t, "rex.png", a.FileName)
	assert.Equal(t, "image/png", a.MediaType)

	assert.Equal(t, contract.PrimitivePart("caption", "good boy"), parts[1])
	assert.Equal(t, contract.PartComplex, parts[2].Kind)
	assert.Equal(t, contract.PrimitivePart("tags", []any{"a", "b"}), parts[3])
	assert.Equal(t, contract.PrimitivePart("extra", float64(1)), parts[4])
}

func TestBindMultipartErrors(t *testing.T) {
	schema := &model.Schema{
		Type:       model.TypeObject,
		Properties: []model.Property{{Name: "photo", Schema: &model.Schema{Type: model.TypeString, Format: "binary"}}},
	}

	_, err := Bind(createPet("multipart/form-data", schema), Invocation{Body: `{"photo":"inline"}`})
	assert.Error(t, err, "binary parts need a file")

	_, err = Bind(createPet("multipart/form-data", schema), Invocation{Body: `[1,2]`})
	assert.Error(t, err)

	_, err = Bind(createPet("application/json", nil), Invocation{Files: map[string]string{"photo": "x"}})
	assert.Error(t, err)
}

func TestLoadAttachmentSniffsUnknownExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.unknownext")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o600))

	a, err := LoadAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", a.MediaType)
	assert.Equal(t, "blob.unknownext", a.FileName)
	assert.Equal(t, []byte("%PDF-1.7\n"), a.Content)
}
