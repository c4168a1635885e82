package graphmodule

import (
	"errors"
	"strings"

	"github.com/roach88/blockwire/internal/protocol"
)

// ResponseError is a response that carried application errors instead of
// data.
type ResponseError struct {
	MessageName string
	Errors      []protocol.MessageError
}

func (e *ResponseError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, me := range e.Errors {
		parts = append(parts, me.Code+": "+me.Message)
	}
	name := e.MessageName
	if name == "" {
		name = "request"
	}
	return name + " failed: " + strings.Join(parts, "; ")
}

// Code returns the code of the first error.
func (e *ResponseError) Code() string {
	if len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Code
}

// Fail returns an error that Handle sends back as a response error with
// code.
func Fail(code, message string) error {
	return &ResponseError{Errors: []protocol.MessageError{{Code: code, Message: message}}}
}

// HasCode reports whether err is a ResponseError carrying code.
func HasCode(err error, code string) bool {
	var re *ResponseError
	if !errors.As(err, &re) {
		return false
	}
	for _, me := range re.Errors {
		if me.Code == code {
			return true
		}
	}
	return false
}

// IsForbidden reports a FORBIDDEN response.
func IsForbidden(err error) bool { return HasCode(err, CodeForbidden) }

// IsNotFound reports a NOT_FOUND response.
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }
