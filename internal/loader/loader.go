package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
	"go.yaml.in/yaml/v4"
)

type Result struct {
	Document *libopenapi.DocumentModel[v3.Document]
	// Source is the parsed document, used for conformance checks.
	Source   libopenapi.Document
	Version  string
	Warnings []string
	RawData  []byte
}

func LoadFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	config := &datamodel.DocumentConfiguration{
		BasePath:            filepath.Dir(absPath),
		AllowFileReferences: true,
	}

	return loadWithConfig(data, config)
}

// Load parses a document held in memory. File references are not followed.
func Load(data []byte) (*Result, error) {
	return loadWithConfig(data, nil)
}

func loadWithConfig(data []byte, config *datamodel.DocumentConfiguration) (*Result, error) {
	var warnings []string

	major, err := detectVersion(data)
	if err != nil {
		return nil, err
	}
	if major == 2 {
		converted, err := convertSwagger2(data)
		if err != nil {
			return nil, fmt.Errorf("converting Swagger 2.0 document: %w", err)
		}
		data = converted
		warnings = append(warnings, "Swagger 2.0 document converted to OpenAPI 3.0")
	}

	var doc libopenapi.Document
	if config != nil {
		doc, err = libopenapi.NewDocumentWithConfiguration(data, config)
	} else {
		doc, err = libopenapi.NewDocument(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}

	version := doc.GetVersion()
	if !strings.HasPrefix(version, "3.") {
		return nil, fmt.Errorf("unsupported OpenAPI version: %s (only 2.0 and 3.x supported)", version)
	}

	model, err := doc.BuildV3Model()
	if err != nil {
		return nil, fmt.Errorf("building OpenAPI model: %w", err)
	}

	return &Result{
		Document: model,
		Source:   doc,
		Version:  version,
		Warnings: warnings,
		RawData:  data,
	}, nil
}

// detectVersion returns the major version from the openapi or swagger key.
func detectVersion(data []byte) (int, error) {
	var root struct {
		OpenAPI string `yaml:"openapi"`
		Swagger string `yaml:"swagger"`
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return 0, fmt.Errorf("parsing OpenAPI document: %w", err)
	}
	switch {
	case strings.HasPrefix(strings.TrimSpace(root.OpenAPI), "3."):
		return 3, nil
	case strings.HasPrefix(strings.TrimSpace(root.Swagger), "2."):
		return 2, nil
	}
	return 0, fmt.Errorf("missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')")
}

// convertSwagger2 converts a Swagger 2.0 document to OpenAPI 3 JSON.
func convertSwagger2(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	asJSON, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return nil, err
	}

	var v2 openapi2.T
	if err := json.Unmarshal(asJSON, &v2); err != nil {
		return nil, err
	}
	v3doc, err := openapi2conv.ToV3(&v2)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v3doc)
}

// stringKeys rewrites YAML mappings with non-string keys (such as unquoted
// status codes) so they can be encoded as JSON.
func stringKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			x[k] = stringKeys(val)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case []any:
		for i, val := range x {
			x[i] = stringKeys(val)
		}
		return x
	}
	return v
}
