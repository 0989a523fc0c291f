package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError reports required parameters or a required body that were
// not supplied, or entity constraints that failed. It is raised before any
// transport activity.
type ValidationError struct {
	Operation string
	Missing   []string
	Err       error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid invocation of ")
	b.WriteString(e.Operation)
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(describeValidation(e.Err))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// describeValidation flattens validator field errors into "Field: tag" pairs.
func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// IOError is a transport failure before a response arrived, or while its
// body was read. Response holds whatever was received.
type IOError struct {
	Request  RequestInfo
	Response *Response
	Err      error
}

func (e *IOError) Error() string {
	if e.Response != nil && e.Response.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: reading response: %v", e.Request.Method, e.Request.URL, e.Response.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Request.Method, e.Request.URL, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IncompatibleResponseError is a response the contract does not describe.
type IncompatibleResponseError struct {
	Response *Response
}

func (e *IncompatibleResponseError) Error() string {
	r := e.Response
	msg := fmt.Sprintf("%s %s: incompatible response: status %d", r.Request.Method, r.Request.URL, r.StatusCode)
	if r.ContentType != "" {
		msg += ", content type " + r.ContentType
	}
	if r.Reason != "" {
		msg += ": " + r.Reason
	}
	return msg
}

func (e *IncompatibleResponseError) Unwrap() error {
	return e.Response.Cause
}

// ConfigError is a malformed invocation, a bug in the calling code rather
// than a runtime condition.
type ConfigError struct {
	Operation string
	Part      string
	Reason    string
	Err       error
	fatal     bool
}

func (e *ConfigError) Error() string {
	msg := "invalid configuration"
	if e.Operation != "" {
		msg += " of " + e.Operation
	}
	if e.Part != "" {
		msg += ": " + e.Part
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Fatal reports a programming error in the caller, such as an attachment
// part holding something other than attachments.
func (e *ConfigError) Fatal() bool {
	return e.fatal
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsIOError(err error) bool {
	var target *IOError
	return errors.As(err, &target)
}

func IsIncompatible(err error) bool {
	var target *IncompatibleResponseError
	return errors.As(err, &target)
}

func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
