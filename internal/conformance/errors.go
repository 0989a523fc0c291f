package conformance

import (
	"fmt"
	"strings"
)

type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Violation is one difference between the traffic and the document.
type Violation struct {
	Direction Direction
	Method    string
	Path      string
	Message   string
	Reason    string
	HowToFix  string
}

func (v Violation) String() string {
	s := fmt.Sprintf("%s %s %s: %s", v.Direction, v.Method, v.Path, v.Message)
	if v.Reason != "" {
		s += " (" + v.Reason + ")"
	}
	return s
}

// Error is returned in strict mode when an exchange does not conform.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "openapi conformance: " + strings.Join(msgs, "; ")
}
