package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeTimeout      = "TIMEOUT"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeInvalidInput = "INVALID_INPUT"

	CodeNetwork              = "NETWORK_ERROR"
	CodeServerRejection      = "SERVER_REJECTION"
	CodeConflictUnresolvable = "CONFLICT_UNRESOLVABLE"
	CodePersistence          = "PERSISTENCE_ERROR"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// Network reports a transport failure (connection error, timeout) on a
// remote call. Retried with backoff.
func Network(operation string, err error) *AppError {
	return &AppError{
		Code:       CodeNetwork,
		Message:    fmt.Sprintf("%s failed: network error", operation),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

// ServerRejection reports a non-success response from the remote booking
// API. Retried with backoff, same as Network.
func ServerRejection(operation string, status int, reason string) *AppError {
	return &AppError{
		Code:       CodeServerRejection,
		Message:    fmt.Sprintf("%s rejected by server: %s", operation, reason),
		HTTPStatus: http.StatusBadGateway,
		Details: map[string]any{
			"operation":     operation,
			"remote_status": status,
		},
	}
}

// ConflictUnresolvable is terminal: no retry can change the outcome.
func ConflictUnresolvable(conflictType, reason string) *AppError {
	return &AppError{
		Code:       CodeConflictUnresolvable,
		Message:    fmt.Sprintf("%s conflict could not be resolved: %s", conflictType, reason),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"conflict_type": conflictType},
	}
}

// Persistence reports a failed write to the local intent store. The
// mutation is kept in memory only.
func Persistence(message string, err error) *AppError {
	return &AppError{
		Code:       CodePersistence,
		Message:    message,
		HTTPStatus: http.StatusInsufficientStorage,
		Err:        err,
	}
}

func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsNetwork(err error) bool {
	return HasCode(err, CodeNetwork)
}

func IsServerRejection(err error) bool {
	return HasCode(err, CodeServerRejection)
}

func IsConflictUnresolvable(err error) bool {
	return HasCode(err, CodeConflictUnresolvable)
}

func IsPersistence(err error) bool {
	return HasCode(err, CodePersistence)
}

// IsRetryable reports whether a sync attempt that failed with err may be
// retried. Unknown errors are treated like transport failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return true
	}
	switch appErr.Code {
	case CodeNetwork, CodeServerRejection, CodeTimeout, CodeUnavailable, CodeInternal:
		return true
	default:
		return false
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
