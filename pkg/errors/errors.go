package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeSpaceNotFound       = "SPACE_NOT_FOUND"
	CodeSlotNotFound        = "SLOT_NOT_FOUND"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeReservationNotFound = "RESERVATION_NOT_FOUND"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodePastDate            = "PAST_DATE"
	CodeSlotConflict        = "SLOT_CONFLICT"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"
	CodeTimeout             = "TIMEOUT"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeRateLimited         = "RATE_LIMITED"
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
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

// ToJSON renders the client facing part of the error. The wrapped cause is
// never included.
func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(e.Response())
	return data
}

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

func notFound(code, resource, id string) *AppError {
	appErr := &AppError{
		Code:       code,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
	if id != "" {
		appErr.Details = map[string]any{"id": id}
	}
	return appErr
}

func SpaceNotFound(id string) *AppError {
	return notFound(CodeSpaceNotFound, "Space", id)
}

func AccountNotFound(email string) *AppError {
	appErr := notFound(CodeAccountNotFound, "Account", "")
	appErr.Details = map[string]any{"email": email}
	return appErr
}

func ReservationNotFound(id string) *AppError {
	return notFound(CodeReservationNotFound, "Reservation", id)
}

func SlotNotFound(missing []string) *AppError {
	return &AppError{
		Code:       CodeSlotNotFound,
		Message:    "One or more slots do not exist",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"slot_ids": missing},
	}
}

func CapacityExceeded(message string, err error) *AppError {
	return &AppError{
		Code:       CodeCapacityExceeded,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func PastDate(message string, err error) *AppError {
	return &AppError{
		Code:       CodePastDate,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func SlotConflict(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeSlotConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
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

func Validation(message string, details map[string]any) *AppError {
	return InvalidInput(message).WithDetails(details)
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
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

func Timeout(message string) *AppError {
	return &AppError{
		Code:       CodeTimeout,
		Message:    message,
		HTTPStatus: http.StatusGatewayTimeout,
	}
}

func Unavailable(service string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    fmt.Sprintf("%s is temporarily unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError returns the first AppError in err's chain. Anything else is an
// unexpected fault and becomes a generic internal error.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// CodeOf reports the error kind, or "" for a nil error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsAppError(err).Code
}
