package handlers

import (
	"errors"
	"net/http"

	"greendrake/negotiation/internal/services"
)

// Error codes returned to API clients.
const (
	CodeValidation   = "validation"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeConflict     = "conflict"
	CodeUnknown      = "unknown"
)

type ApiError struct {
	Code    string
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(code, message string) *ApiError {
	return &ApiError{Code: code, Message: message}
}

// FromServiceError classifies a service error. Anything that is not one of
// the caller-facing kinds is reported as unknown without its details.
func FromServiceError(err error) *ApiError {
	switch {
	case errors.Is(err, services.ErrValidation):
		return NewApiError(CodeValidation, err.Error())
	case errors.Is(err, services.ErrNotFound):
		return NewApiError(CodeNotFound, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		return NewApiError(CodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrConflict):
		return NewApiError(CodeConflict, err.Error())
	default:
		return NewApiError(CodeUnknown, "Internal error")
	}
}

// HTTPStatus maps an error code onto a REST status.
func (e *ApiError) HTTPStatus() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
