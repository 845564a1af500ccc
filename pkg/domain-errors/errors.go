// Package domainerrors provides coded errors shared by services and handlers.
//
// Services return *Error values (optionally wrapping a cause); the HTTP layer
// translates the Code into a status and an OAuth-style error envelope. Causes
// are kept for logging and errors.Is/As but are never rendered to clients.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies an error for transport translation.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"

	// OAuth 2.0 error codes (RFC 6749 section 4.1.2.1 and 5.2).
	CodeAccessDenied         Code = "access_denied"
	CodeInvalidClient        Code = "invalid_client"
	CodeInvalidGrant         Code = "invalid_grant"
	CodeUnsupportedGrantType Code = "unsupported_grant_type"
	CodeInvalidRedirectURI   Code = "invalid_redirect_uri"

	// CodeInvalidClientMetadata is the RFC 7591 registration rejection.
	CodeInvalidClientMetadata Code = "invalid_client_metadata"

	// CodeConfiguration marks a startup misconfiguration. It is fatal and
	// never produced per request.
	CodeConfiguration Code = "configuration_error"
	// CodeUpstream is a non-success or malformed answer from the identity provider.
	CodeUpstream Code = "upstream_error"
	// CodeBadGateway is an identity provider that could not be reached.
	CodeBadGateway Code = "bad_gateway"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and a client-safe message to an underlying cause.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// HasCode is an alias of Is kept for call sites that read better with it.
func HasCode(err error, code Code) bool {
	return Is(err, code)
}

// CodeOf returns the outermost code in err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost coded error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidRequest, CodeInvalidInput, CodeValidation,
		CodeAccessDenied, CodeInvalidGrant, CodeUnsupportedGrantType, CodeInvalidRedirectURI,
		CodeInvalidClientMetadata:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidClient:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeBadGateway:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		// CodeInternal, CodeUpstream, CodeInvariantViolation, CodeConfiguration
		return http.StatusInternalServerError
	}
}
