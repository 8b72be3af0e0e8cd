package errors

import (
	"errors"
	"net/http"
)

// Kind classifies an application error. Handlers translate kinds into
// caller-visible codes; the message of some kinds is withheld.
type Kind string

const (
	KindAuth               Kind = "auth"
	KindValidation         Kind = "validation"
	KindDatabase           Kind = "database"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindMethodNotSupported Kind = "method_not_supported"
	KindParse              Kind = "parse"
	KindInternal           Kind = "internal"
)

// Error is the tagged error returned by services and guards.
type Error struct {
	Kind    Kind
	Message string
	// Fields holds per-field messages for validation failures.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Auth reports a credential or authorization failure.
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// Validation reports malformed input.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// Database reports a persistence failure. The message is never shown to callers.
func Database(message string, err error) *Error {
	return &Error{Kind: KindDatabase, Message: message, Err: err}
}

// Unauthorized reports a missing identity on a protected call.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports an identity lacking the required role.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports an unknown resource or procedure.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// MethodNotSupported reports a procedure called with the wrong HTTP method.
func MethodNotSupported(message string) *Error {
	return &Error{Kind: KindMethodNotSupported, Message: message}
}

// Parse reports an undecodable request.
func Parse(message string, err error) *Error {
	return &Error{Kind: KindParse, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Message string            `json:"message"`
	Code    int               `json:"code"`
	Data    ErrorResponseData `json:"data"`
}

// ErrorResponseData carries the symbolic code and HTTP status of an error.
type ErrorResponseData struct {
	Code        string            `json:"code"`
	HTTPStatus  int               `json:"httpStatus"`
	Path        string            `json:"path,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// HTTPError is an error translated for the wire.
type HTTPError struct {
	StatusCode int
	RPCCode    int
	Code       string
	Message    string
	Fields     map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode, rpcCode int, code, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		RPCCode:    rpcCode,
		Code:       code,
		Message:    message,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse for the given path.
func (e *HTTPError) ToErrorResponse(path string) ErrorResponse {
	return ErrorResponse{
		Message: e.Message,
		Code:    e.RPCCode,
		Data: ErrorResponseData{
			Code:        e.Code,
			HTTPStatus:  e.StatusCode,
			Path:        path,
			FieldErrors: e.Fields,
		},
	}
}

// JSON-RPC 2.0 style numeric codes, as used by tRPC clients.
const (
	rpcParseError         = -32700
	rpcBadRequest         = -32600
	rpcInternalError      = -32603
	rpcUnauthorized       = -32001
	rpcForbidden          = -32003
	rpcNotFound           = -32004
	rpcMethodNotSupported = -32005
)

// Messages shown in place of withheld internal detail.
const (
	DatabaseFailedMessage = "Database operation failed"
	UnexpectedMessage     = "An unexpected error occurred"
)

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var e *Error
	if !errors.As(err, &e) {
		return NewHTTPError(http.StatusInternalServerError, rpcInternalError, "INTERNAL_SERVER_ERROR", UnexpectedMessage)
	}
	switch e.Kind {
	case KindAuth, KindUnauthorized:
		return NewHTTPError(http.StatusUnauthorized, rpcUnauthorized, "UNAUTHORIZED", e.Message)
	case KindValidation:
		h := NewHTTPError(http.StatusBadRequest, rpcBadRequest, "BAD_REQUEST", e.Message)
		h.Fields = e.Fields
		return h
	case KindDatabase:
		return NewHTTPError(http.StatusInternalServerError, rpcInternalError, "INTERNAL_SERVER_ERROR", DatabaseFailedMessage)
	case KindForbidden:
		return NewHTTPError(http.StatusForbidden, rpcForbidden, "FORBIDDEN", e.Message)
	case KindNotFound:
		return NewHTTPError(http.StatusNotFound, rpcNotFound, "NOT_FOUND", e.Message)
	case KindMethodNotSupported:
		return NewHTTPError(http.StatusMethodNotAllowed, rpcMethodNotSupported, "METHOD_NOT_SUPPORTED", e.Message)
	case KindParse:
		return NewHTTPError(http.StatusBadRequest, rpcParseError, "PARSE_ERROR", e.Message)
	default:
		return NewHTTPError(http.StatusInternalServerError, rpcInternalError, "INTERNAL_SERVER_ERROR", UnexpectedMessage)
	}
}
