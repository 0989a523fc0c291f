// Package naming derives identifiers for operations that the source
// document leaves unnamed.
package naming

import (
	"strings"
	"unicode"
)

var initialisms = map[string]bool{
	"API":   true,
	"CPU":   true,
	"CSV":   true,
	"DNS":   true,
	"HTML":  true,
	"HTTP":  true,
	"HTTPS": true,
	"ID":    true,
	"IP":    true,
	"JSON":  true,
	"OS":    true,
	"SQL":   true,
	"SSH":   true,
	"TLS":   true,
	"TTL":   true,
	"UI":    true,
	"UID":   true,
	"UUID":  true,
	"URI":   true,
	"URL":   true,
	"VM":    true,
	"XML":   true,
}

// OperationID derives an operation ID from the method and path template:
// "GET /pets/{petId}" becomes "getPetsPetID".
func OperationID(method, path string) string {
	return CamelCase(strings.ToLower(method) + " " + path)
}

func CamelCase(s string) string {
	var result strings.Builder
	for i, word := range splitWords(s) {
		if i == 0 {
			result.WriteString(strings.ToLower(word))
			continue
		}
		result.WriteString(titleWord(word))
	}
	return result.String()
}

func titleWord(word string) string {
	upper := strings.ToUpper(word)
	if initialisms[upper] {
		return upper
	}
	runes := []rune(strings.ToLower(word))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// splitWords breaks s at separators, path punctuation and lower-to-upper
// case changes.
func splitWords(s string) []string {
	var words []string
	var current strings.Builder
	var prev rune

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			prev = r
			continue
		}
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			flush()
		}
		current.WriteRune(r)
		prev = r
	}
	flush()

	return words
}
