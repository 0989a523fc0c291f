package contract

import "strconv"

// StatusCode is either a concrete HTTP status or the Default sentinel.
// The zero value is not a valid status.
type StatusCode struct {
	code      int
	isDefault bool
}

// Default matches any status code without a dedicated response group.
// It never compares equal to a concrete code.
var Default = StatusCode{isDefault: true}

func Status(code int) StatusCode {
	return StatusCode{code: code}
}

func (s StatusCode) IsDefault() bool {
	return s.isDefault
}

// Code returns the concrete status code; ok is false for Default.
func (s StatusCode) Code() (code int, ok bool) {
	if s.isDefault {
		return 0, false
	}
	return s.code, true
}

func (s StatusCode) String() string {
	if s.isDefault {
		return "default"
	}
	return strconv.Itoa(s.code)
}

// ParseStatusCode parses an OpenAPI response key ("200", "default").
// Range keys such as "4XX" are not concrete codes and are rejected.
func ParseStatusCode(s string) (StatusCode, bool) {
	if s == "default" {
		return Default, true
	}
	code, err := strconv.Atoi(s)
	if err != nil || code < 100 || code > 599 {
		return StatusCode{}, false
	}
	return Status(code), true
}

func (s StatusCode) valid() bool {
	return s.isDefault || (s.code >= 100 && s.code <= 599)
}
