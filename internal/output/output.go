// Package output renders decoded response entities.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/itchyny/gojq"
	"go.yaml.in/yaml/v4"
)

// Format is an output encoding.
type Format int

const (
	// JSON is pretty-printed JSON.
	JSON Format = iota
	// Compact is single-line JSON, one value per line.
	Compact
	// YAML is a YAML document.
	YAML
	// Raw prints strings without quoting and everything else as JSON.
	Raw
)

// ParseFormat parses an output format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return JSON, nil
	case "compact", "jsonl", "ndjson":
		return Compact, nil
	case "yaml", "yml":
		return YAML, nil
	case "raw", "text":
		return Raw, nil
	}
	return JSON, fmt.Errorf("invalid output format: %q (use 'json', 'compact', 'yaml' or 'raw')", s)
}

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case Compact:
		return "compact"
	case YAML:
		return "yaml"
	case Raw:
		return "raw"
	}
	return "unknown"
}

// Printer writes entities in one format, optionally filtered by a jq query.
type Printer struct {
	format Format
	query  *gojq.Query
}

// NewPrinter parses the query up front so a bad expression fails before
// any request is sent.
func NewPrinter(format Format, query string) (*Printer, error) {
	p := &Printer{format: format}
	if query = normalizeExpression(query); query != "" {
		q, err := gojq.Parse(query)
		if err != nil {
			return nil, fmt.Errorf("invalid query expression: %w", err)
		}
		p.query = q
	}
	return p, nil
}

// Print writes v to w.
func (p *Printer) Print(w io.Writer, v any) error {
	data, err := Normalize(v)
	if err != nil {
		return err
	}

	if p.query != nil {
		results, err := runQuery(p.query, data)
		if err != nil {
			return err
		}
		// Each query result is printed on its own, the way jq does.
		for _, r := range results {
			if err := p.write(w, r); err != nil {
				return err
			}
		}
		return nil
	}
	return p.write(w, data)
}

func (p *Printer) write(w io.Writer, v any) error {
	switch p.format {
	case Raw:
		if s, ok := v.(string); ok {
			_, err := fmt.Fprintln(w, s)
			return err
		}
		return writeJSON(w, v, false)
	case Compact:
		return writeJSON(w, v, true)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return writeJSON(w, v, false)
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Normalize converts v into the plain JSON value space (maps, slices,
// float64, string, bool, nil) that queries and YAML encoding operate on.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return x, nil
	case []byte:
		return string(x), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("encoding output: %w", err)
	}
	return out, nil
}

// Apply runs a jq expression against v and returns the single result, or
// all results as a list.
func Apply(v any, expression string) (any, error) {
	data, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	expression = normalizeExpression(expression)
	if expression == "" {
		return data, nil
	}
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid query expression: %w", err)
	}
	results, err := runQuery(query, data)
	if err != nil {
		return nil, err
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func runQuery(query *gojq.Query, data any) ([]any, error) {
	iter := query.Run(data)

	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("query error: %w", err)
		}
		results = append(results, v)
	}
	return results, nil
}

// normalizeExpression undoes the \! escaping zsh applies even inside
// single quotes.
func normalizeExpression(expr string) string {
	return strings.TrimSpace(strings.ReplaceAll(expr, `\!`, `!`))
}
