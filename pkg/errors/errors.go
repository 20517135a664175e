package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeGateway       Code = "GATEWAY_ERROR"
)

// Metadata drives how a code is rendered over HTTP and whether callers may
// retry the operation that produced it.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable      = true
	detailsAllowed = true
)

func meta(status int, retry bool, public string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

// Provider clients map upstream 401/403/429 answers onto the auth and rate
// limit codes, so they stay even though the API itself is unauthenticated.
var metadataByCode = map[Code]Metadata{
	CodeValidation:    meta(http.StatusBadRequest, false, "validation failed", detailsAllowed),
	CodeUnauthorized:  meta(http.StatusUnauthorized, false, "authentication required", false),
	CodeForbidden:     meta(http.StatusForbidden, false, "access denied", false),
	CodeNotFound:      meta(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:      meta(http.StatusConflict, false, "conflict detected", false),
	CodeStateConflict: meta(http.StatusUnprocessableEntity, false, "state transition disallowed", detailsAllowed),
	CodeIdempotency:   meta(http.StatusConflict, false, "idempotency key reused", detailsAllowed),
	CodeRateLimit:     meta(http.StatusTooManyRequests, retryable, "rate limit exceeded", false),
	CodeInternal:      meta(http.StatusInternalServerError, retryable, "internal server error", false),
	CodeDependency:    meta(http.StatusServiceUnavailable, retryable, "dependency unavailable", detailsAllowed),
	CodeConfiguration: meta(http.StatusInternalServerError, false, "service misconfigured", detailsAllowed),
	CodeGateway:       meta(http.StatusBadGateway, retryable, "payment provider failure", detailsAllowed),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the typed code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the code carried by err allows a retry.
// Untyped errors count as internal and are retryable.
func IsRetryable(err error) bool {
	return err != nil && MetadataFor(CodeOf(err)).Retryable
}
