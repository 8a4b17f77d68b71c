// Package autherr defines the typed authentication error used across the
// login flow. Every failure surfaced to a failure handler carries a stable
// OAuth2 error code so callers can branch on it.
package autherr

import "fmt"

// Stable error codes produced by this module. Provider and engine codes are
// passed through verbatim and are not enumerated here.
const (
	CodeAuthorizationRequestNotFound = "authorization_request_not_found"
	CodeInvalidStateParameter        = "invalid_state_parameter"
	CodeClientRegistrationNotFound   = "client_registration_not_found"
)

// Error is the authentication error for the OAuth2 login flow.
// Code is part of the external contract: handlers branch on it and it must
// never be renamed silently.
type Error struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	URI         string `json:"uri,omitempty"`
	Err         error  `json:"-"` // causa original, útil para logs
}

// Error implementa la interfaz error.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Description, e.Err)
	}
	if e.Description != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Description)
	}
	return fmt.Sprintf("[%s]", e.Code)
}

// Unwrap permite acceder al error original.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code.
func New(code string) *Error {
	return &Error{Code: code}
}

// WithDescription returns a copy carrying a human-readable description.
// Copies, never mutates: the predefined errors below are shared.
func (e *Error) WithDescription(desc string) *Error {
	out := *e
	out.Description = desc
	return &out
}

// WithCause returns a copy carrying the original cause.
func (e *Error) WithCause(err error) *Error {
	out := *e
	out.Err = err
	return &out
}

// FromProvider builds an Error from an authorization error response sent by
// the provider on the callback. The code is passed through verbatim.
func FromProvider(code, description, uri string) *Error {
	return &Error{Code: code, Description: description, URI: uri}
}

// AsError devuelve el *Error si err lo es (directo o envuelto), o nil.
func AsError(err error) *Error {
	for err != nil {
		if ae, ok := err.(*Error); ok {
			return ae
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// Predefined errors for the internal validation failures of the callback leg.
var (
	ErrAuthorizationRequestNotFound = &Error{
		Code:        CodeAuthorizationRequestNotFound,
		Description: "no stored authorization request matches the callback",
	}

	ErrInvalidStateParameter = &Error{
		Code:        CodeInvalidStateParameter,
		Description: "state parameter missing or does not match the stored request",
	}

	ErrClientRegistrationNotFound = &Error{
		Code:        CodeClientRegistrationNotFound,
		Description: "no client registration for the id carried by the stored request",
	}
)
