package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeBadRequest        = "BAD_REQUEST"
	CodeTimeout           = "TIMEOUT"
	CodeUnavailable       = "SERVICE_UNAVAILABLE"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeSlotUnavailable   = "SLOT_UNAVAILABLE"
	CodeSlotInPast        = "SLOT_IN_PAST"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConfig            = "CONFIG_ERROR"
	CodeInvalidCode       = "INVALID_CODE"
	CodeExpiredChallenge  = "EXPIRED_CHALLENGE"
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

// Response is the wire form of the error. The cause is never exposed.
func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
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

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

func Timeout(message string) *AppError {
	return New(CodeTimeout, message, http.StatusGatewayTimeout)
}

func Unavailable(service string) *AppError {
	return New(CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// SlotUnavailable reports that the requested start time is already held by
// an active reservation or is not on the slot grid.
func SlotUnavailable(message string) *AppError {
	return New(CodeSlotUnavailable, message, http.StatusConflict)
}

func SlotInPast(message string) *AppError {
	return New(CodeSlotInPast, message, http.StatusUnprocessableEntity)
}

func InvalidTransition(from, to string) *AppError {
	return New(CodeInvalidTransition,
		fmt.Sprintf("cannot move reservation from %s to %s", from, to),
		http.StatusConflict,
	).WithDetails(map[string]any{"from": from, "to": to})
}

// StoreUnavailable wraps a transport or backend failure of the reservation store.
func StoreUnavailable(err error) *AppError {
	appErr := Unavailable("reservation store")
	appErr.Err = err
	return appErr
}

func ConfigError(message string) *AppError {
	return New(CodeConfig, message, http.StatusInternalServerError)
}

func InvalidCode(message string) *AppError {
	return New(CodeInvalidCode, message, http.StatusUnauthorized)
}

func ExpiredChallenge(message string) *AppError {
	return New(CodeExpiredChallenge, message, http.StatusGone)
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

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
