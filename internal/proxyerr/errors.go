// Package proxyerr defines the error taxonomy surfaced to proxy clients.
package proxyerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure for HTTP mapping and logging.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindParseError          Kind = "parse_error"
	KindQueryTypeNotAllowed Kind = "query_type_not_allowed"
	KindMethodNotAllowed    Kind = "method_not_allowed"
	KindQueueFull           Kind = "queue_full"
	KindBackend             Kind = "backend_error"
	KindTimeout             Kind = "timeout"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// Error is a client-visible failure. Status defaults per Kind when zero.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Data carries detail for the JSON error body, e.g. the parser message.
	Data any
	// Body, when non-nil, is written verbatim instead of the JSON envelope.
	// Used to pass an upstream error body through unchanged.
	Body        []byte
	ContentType string
}

func (e *Error) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Data)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// HTTPStatus returns the explicit status or the default for the kind.
func (e *Error) HTTPStatus() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Kind {
	case KindBadRequest, KindParseError, KindQueryTypeNotAllowed:
		return http.StatusBadRequest
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindQueueFull, KindCancelled:
		return http.StatusServiceUnavailable
	case KindBackend:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// New builds an Error with the default status for kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithData attaches detail for the JSON error body.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// Backend wraps an upstream failure, preserving its status and body.
func Backend(status int, contentType string, body []byte) *Error {
	return &Error{
		Kind:        KindBackend,
		Status:      status,
		Message:     fmt.Sprintf("backend returned status %d", status),
		Body:        body,
		ContentType: contentType,
	}
}

// From coerces err into an *Error, defaulting to KindInternal.
func From(err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}
