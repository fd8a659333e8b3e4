package api

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every *TransportError via errors.Is.
	ErrTransport = errors.New("transport error")

	// ErrDecoding matches every *DecodingError via errors.Is.
	ErrDecoding = errors.New("decoding error")

	// ErrInvalidBaseURL is returned when the backend base URL cannot be used.
	ErrInvalidBaseURL = errors.New("invalid base URL: expected absolute http(s) URL")

	// ErrResponseTooLarge is wrapped by a TransportError when a body exceeds the size limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// TransportError reports a network or connection failure, or a non-2xx response.
type TransportError struct {
	// Method and Path identify the request.
	Method string
	Path   string

	// StatusCode is the HTTP status for non-2xx responses, zero for network failures.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// DecodingError reports a response body that does not match the expected shape.
type DecodingError struct {
	// Path identifies the request whose body failed to decode.
	Path string

	// Err is the underlying decoder error.
	Err error
}

// Error implements error.
func (e *DecodingError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodingError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDecoding.
func (e *DecodingError) Is(target error) bool {
	return target == ErrDecoding
}
