package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and pipeline stages MUST use these instead
// of hardcoded strings.
const (
	// Malformed request (400, terminal)
	ErrCodeMissingSignature ErrorCode = "validation_missing_signature"
	ErrCodeEmptyBody        ErrorCode = "validation_empty_body"
	ErrCodeInvalidJSON      ErrorCode = "validation_invalid_json"
	ErrCodeBodyTooLarge     ErrorCode = "validation_body_too_large"

	// Business validation (400, terminal)
	ErrCodeValidationPayload ErrorCode = "validation_payload"

	// Auth (401, terminal)
	ErrCodeInvalidSignature ErrorCode = "auth_invalid_signature"

	// Internal/Upstream (500, redriven)
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
	ErrCodeUpstreamSink        ErrorCode = "upstream_sink_unavailable"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalCorruptData ErrorCode = "internal_message_corrupt"
)

// FailureKind classifies a failed pipeline outcome for dispatch.
type FailureKind string

const (
	KindNone                  FailureKind = ""
	KindMalformedRequest      FailureKind = "MalformedRequest"
	KindUnauthorized          FailureKind = "Unauthorized"
	KindValidationFailure     FailureKind = "ValidationFailure"
	KindTransientInfraFailure FailureKind = "TransientInfrastructureFailure"
)

// Retryable reports whether a failure of this kind should be handed back to
// the queue's redrive mechanism. Business rejections are terminal.
func (k FailureKind) Retryable() bool {
	return k == KindTransientInfraFailure
}

// Kind maps an ErrorCode onto the failure taxonomy. Unrecognized codes are
// treated as transient so that nothing unknown is silently dropped.
func (c ErrorCode) Kind() FailureKind {
	switch c {
	case ErrCodeMissingSignature, ErrCodeEmptyBody, ErrCodeInvalidJSON, ErrCodeBodyTooLarge:
		return KindMalformedRequest
	case ErrCodeValidationPayload:
		return KindValidationFailure
	case ErrCodeInvalidSignature:
		return KindUnauthorized
	default:
		return KindTransientInfraFailure
	}
}

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case c == ErrCodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge // 413
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard error type used throughout the pipeline.
// Every rejection and infrastructure failure is expressed as an AppError so
// that the ingress can render it and the consumer can classify it.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Kind returns the failure kind for this error's code.
func (e *AppError) Kind() FailureKind {
	return e.Code.Kind()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for pipeline errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
