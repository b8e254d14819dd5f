package easyparcel

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes a caller has to tell apart.
var (
	// ErrConfiguration indicates the client could not be constructed,
	// typically because no API key could be resolved.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidOperation indicates an operation name with no endpoint mapping.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrRequestFailed indicates the HTTP exchange failed or the body was not JSON.
	ErrRequestFailed = errors.New("api request failed")

	// ErrMissingField indicates a required payload field was not set.
	ErrMissingField = errors.New("missing required parameter")
)

// RequestError is returned when the transport fails or the response body
// cannot be decoded. It matches ErrRequestFailed with errors.Is.
type RequestError struct {
	Action string
	Cause  error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("api request failed (%s): %v", e.Action, e.Cause)
	}
	return fmt.Sprintf("api request failed (%s)", e.Action)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// RemoteError is a non-zero error code reported by the API. It travels as
// data on a Result; it is never returned as an operation error.
type RemoteError struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("easyparcel error (%s): %s", e.Code, e.Message)
}

// Is implements errors.Is for RemoteError, matching on code.
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func missingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}
