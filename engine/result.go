package engine

import (
	"net/http"

	"github.com/kolah/courier/contract"
)

// Outcome discriminates the Response variant.
type Outcome int

const (
	// OutcomeDefined is a response that conforms to one of the operation's
	// response definitions; Entity holds the decoded value.
	OutcomeDefined Outcome = iota + 1
	// OutcomeIncompatible is a response the contract does not describe. Body
	// holds the raw payload.
	OutcomeIncompatible
	// OutcomeIncomplete is a response whose body could not be read.
	OutcomeIncomplete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDefined:
		return "defined"
	case OutcomeIncompatible:
		return "incompatible"
	case OutcomeIncomplete:
		return "incomplete"
	}
	return "unknown"
}

// RequestInfo describes a request as it was sent.
type RequestInfo struct {
	Method string
	URL    string
	Header http.Header
}

func requestInfo(req *http.Request) RequestInfo {
	if req == nil {
		return RequestInfo{}
	}
	info := RequestInfo{Method: req.Method, Header: req.Header.Clone()}
	if req.URL != nil {
		info.URL = req.URL.String()
	}
	return info
}

// Response is the interpreted result of one exchange.
//
// For OutcomeDefined, Definition is the matched response definition and
// Entity is nil (no content), an io.ReadCloser the caller must close (stream),
// a string (text) or a value of Definition.Type.GoType().
type Response struct {
	Outcome     Outcome
	Request     RequestInfo
	StatusCode  int
	Header      http.Header
	ContentType string
	Definition  contract.ResponseDefinition
	Entity      any
	Body        []byte
	Reason      string
	Cause       error
}

// Type is the resolved entity type of a defined response.
func (r *Response) Type() contract.Type {
	return r.Definition.Type
}
