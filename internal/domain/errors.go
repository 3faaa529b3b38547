package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCapabilityUnavailable = errors.New("media library capability unavailable")
	ErrMalformedRequest      = errors.New("malformed request")
	ErrInvalidPagination     = errors.New("invalid pagination")
	ErrNotFound              = errors.New("entity not found")
	ErrUnauthorized          = errors.New("media library access not authorized")
	ErrUnknownMethod         = errors.New("unknown method")
)

// Error codes reported to callers
const (
	CodeUnavailable    = "UNAVAILABLE"
	CodeBadCall        = "BAD_CALL"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeInternal       = "INTERNAL"
)

// CallError is the structured error that crosses the transport boundary
type CallError struct {
	Code    string
	Message string
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ToCallError maps an internal error to the caller-facing shape
func ToCallError(err error) *CallError {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case errors.Is(err, ErrCapabilityUnavailable):
		return &CallError{Code: CodeUnavailable, Message: "Media library is not available on this system", Err: err}
	case errors.Is(err, ErrMalformedRequest):
		return &CallError{Code: CodeBadCall, Message: "Bad call", Err: err}
	case errors.Is(err, ErrNotFound):
		return &CallError{Code: CodeNotFound, Message: "Not found", Err: err}
	case errors.Is(err, ErrUnauthorized):
		return &CallError{Code: CodeUnauthorized, Message: "Media library access has not been authorized", Err: err}
	case errors.Is(err, ErrUnknownMethod):
		return &CallError{Code: CodeNotImplemented, Message: "Method not implemented", Err: err}
	default:
		return &CallError{Code: CodeInternal, Message: "Internal error", Err: err}
	}
}
