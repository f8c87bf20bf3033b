package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies every failure the pipeline can produce. Kinds are
// matched by value, never by message text.
type ErrorKind string

const (
	KindUnknownStrategy   ErrorKind = "unknown_strategy"
	KindTemplateError     ErrorKind = "template_error"
	KindMalformedOutput   ErrorKind = "malformed_structured_output"
	KindRateLimited       ErrorKind = "rate_limited"
	KindProviderError     ErrorKind = "provider_error"
	KindConnectionFailure ErrorKind = "connection_failure"
	KindUnexpected        ErrorKind = "unexpected"
)

// Retryable reports whether a caller may reasonably retry the failed
// call. No component in this process retries on its own.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindConnectionFailure
}

// HTTPStatus maps a kind onto the small external status taxonomy.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindConnectionFailure:
		return http.StatusServiceUnavailable
	case KindUnknownStrategy:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed failure from a single component.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a typed error without a cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds a typed error around an underlying cause.
func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind carried anywhere in err's chain, defaulting
// to KindUnexpected for untyped errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var p *PipelineError
	if errors.As(err, &p) {
		return p.Kind
	}
	return KindUnexpected
}

// PipelineError is the single externally visible failure shape. The
// orchestrator wraps every internal error into one, preserving the
// original kind so the transport can pick the right status.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline failed (%s): %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// AsPipelineError wraps err with stage context, keeping its kind. An
// error that already is a PipelineError passes through untouched; nil
// stays nil.
func AsPipelineError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var p *PipelineError
	if errors.As(err, &p) {
		return err
	}
	return &PipelineError{
		Kind:    KindOf(err),
		Message: fmt.Sprintf("%s: %v", stage, err),
		Err:     err,
	}
}
