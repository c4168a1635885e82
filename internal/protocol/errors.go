package protocol

import (
	"errors"
	"fmt"
)

// ProtocolError reports a violated contract between roles or a misuse of a
// handler. Application errors travel as MessageError data instead.
type ProtocolError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Module and MessageName identify the message involved, when known.
	Module      string
	MessageName string

	// RequestID identifies the request involved, when known.
	RequestID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes protocol errors.
type ErrorCode string

const (
	// ErrCodeMissingCallback means a message requiring a response had no
	// callback to produce it.
	ErrCodeMissingCallback ErrorCode = "MISSING_CALLBACK"

	// ErrCodeResponseMismatch means a request was answered by a message with
	// the wrong name.
	ErrCodeResponseMismatch ErrorCode = "RESPONSE_MISMATCH"

	// ErrCodeModuleNotRegistered means a message arrived for a module no
	// handler is registered for.
	ErrCodeModuleNotRegistered ErrorCode = "MODULE_NOT_REGISTERED"

	// ErrCodeModuleDestroyed means a destroyed module handler was used.
	ErrCodeModuleDestroyed ErrorCode = "MODULE_DESTROYED"

	// ErrCodeAlreadyInitialized means a handler was initialized twice.
	ErrCodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// ErrCodeDuplicateModule means a second handler with the same module
	// name was registered for one endpoint and role.
	ErrCodeDuplicateModule ErrorCode = "DUPLICATE_MODULE"

	// ErrCodeHandshakeTimeout means the block gave up resending init.
	ErrCodeHandshakeTimeout ErrorCode = "HANDSHAKE_TIMEOUT"

	// ErrCodeRequestTimeout means a request was not answered in time.
	ErrCodeRequestTimeout ErrorCode = "REQUEST_TIMEOUT"

	// ErrCodeUndeclaredMessage means a module definition does not declare
	// the message.
	ErrCodeUndeclaredMessage ErrorCode = "UNDECLARED_MESSAGE"

	// ErrCodeCallbackFailed means a callback returned an error.
	ErrCodeCallbackFailed ErrorCode = "CALLBACK_FAILED"

	// ErrCodeEngineClosed means the engine was detached from its endpoint.
	ErrCodeEngineClosed ErrorCode = "ENGINE_CLOSED"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Module != "" || e.MessageName != "" {
		msg += fmt.Sprintf(" (message=%s/%s", e.Module, e.MessageName)
		if e.RequestID != "" {
			msg += ", request=" + e.RequestID
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProtocolError) Unwrap() error { return e.Err }

// HasCode reports whether err is or wraps a *ProtocolError with code.
func HasCode(err error, code ErrorCode) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsMismatchError reports whether a request was answered by the wrong
// message.
func IsMismatchError(err error) bool { return HasCode(err, ErrCodeResponseMismatch) }

// IsMissingCallbackError reports whether a required response had no
// callback.
func IsMissingCallbackError(err error) bool { return HasCode(err, ErrCodeMissingCallback) }

// IsDestroyedError reports whether a destroyed module was used.
func IsDestroyedError(err error) bool { return HasCode(err, ErrCodeModuleDestroyed) }

// IsTimeoutError reports a handshake or request timeout.
func IsTimeoutError(err error) bool {
	return HasCode(err, ErrCodeHandshakeTimeout) || HasCode(err, ErrCodeRequestTimeout)
}

func newMismatchError(requestID, expected, received string) *ProtocolError {
	return &ProtocolError{
		Code: ErrCodeResponseMismatch,
		Message: fmt.Sprintf("message with requestId %q expected response from message named %q, received response from %q instead",
			requestID, expected, received),
		MessageName: received,
		RequestID:   requestID,
	}
}
