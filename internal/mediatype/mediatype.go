// Package mediatype classifies and matches media types and builds Accept
// headers from declared response content types.
package mediatype

import (
	"mime"
	"strings"
)

const (
	JSON           = "application/json"
	FormURLEncoded = "application/x-www-form-urlencoded"
	MultipartForm  = "multipart/form-data"
	OctetStream    = "application/octet-stream"
)

// Parse splits a media type into lowercase type and subtype, dropping any
// parameters. ok is false for empty or malformed values.
func Parse(s string) (typ, sub string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", false
	}
	full, _, err := mime.ParseMediaType(s)
	if err != nil {
		// Lenient fallback for values with broken parameters.
		full, _, _ = strings.Cut(s, ";")
		full = strings.ToLower(strings.TrimSpace(full))
	}
	typ, sub, ok = strings.Cut(full, "/")
	if !ok || typ == "" || sub == "" {
		return "", "", false
	}
	return typ, sub, true
}

// Essence returns "type/subtype" without parameters, or "" when s does not
// parse.
func Essence(s string) string {
	typ, sub, ok := Parse(s)
	if !ok {
		return ""
	}
	return typ + "/" + sub
}

// IsJSON reports whether s is application/json or a vendor JSON type
// (application/vnd.*+json).
func IsJSON(s string) bool {
	typ, sub, ok := Parse(s)
	if !ok || typ != "application" {
		return false
	}
	if sub == "json" {
		return true
	}
	return strings.HasPrefix(sub, "vnd.") && strings.HasSuffix(sub, "+json")
}

// IsText reports whether s has the text top-level type.
func IsText(s string) bool {
	typ, _, ok := Parse(s)
	return ok && typ == "text"
}

// Accept builds an Accept header value. JSON types come first without a
// weight, followed by the other types each weighted q=0.5. It returns ""
// when no content type is declared.
func Accept(contentTypes []string) string {
	seen := make(map[string]bool, len(contentTypes))
	var jsonTypes, others []string
	for _, ct := range contentTypes {
		ct = strings.TrimSpace(ct)
		if ct == "" || seen[ct] {
			continue
		}
		seen[ct] = true
		if IsJSON(ct) {
			jsonTypes = append(jsonTypes, ct)
		} else {
			others = append(others, ct+"; q=0.5")
		}
	}
	return strings.Join(append(jsonTypes, others...), ", ")
}

// Matches reports whether the actual content type of a response satisfies a
// declared, possibly wildcarded, content type. An empty declared type only
// matches an empty actual type.
func Matches(actual, declared string) bool {
	declared = strings.TrimSpace(declared)
	actual = strings.TrimSpace(actual)
	if declared == "" {
		return actual == ""
	}
	aTyp, aSub, ok := Parse(actual)
	if !ok {
		return false
	}
	dTyp, dSub, ok := Parse(declared)
	if !ok {
		return false
	}
	if dTyp == "*" {
		return true
	}
	if dTyp != aTyp {
		return false
	}
	return dSub == "*" || dSub == aSub
}
