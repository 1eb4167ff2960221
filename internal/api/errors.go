package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vetconnect/vetconnect-server/internal/apperrors"
)

// ApiError is the uniform error envelope: {"success":false,"error":"..."}.
type ApiError struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func newApiError(statusCode int, message string) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
	}
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return newApiError(http.StatusBadRequest, lower(http.StatusText(http.StatusBadRequest)))
}

func NewNotFoundError() *ApiError {
	return newApiError(http.StatusNotFound, lower(http.StatusText(http.StatusNotFound)))
}

func NewInternalServerError(err error) *ApiError {
	e := newApiError(http.StatusInternalServerError, lower(http.StatusText(http.StatusInternalServerError)))
	e.Err = err
	return e
}

func NewUnauthorizedError() *ApiError {
	return newApiError(http.StatusUnauthorized, lower(http.StatusText(http.StatusUnauthorized)))
}

func NewForbiddenError() *ApiError {
	return newApiError(http.StatusForbidden, lower(http.StatusText(http.StatusForbidden)))
}

func NewConflictError(message string) *ApiError {
	return newApiError(http.StatusConflict, message)
}

func NewMethodNotAllowedError() *ApiError {
	return newApiError(http.StatusMethodNotAllowed, lower(http.StatusText(http.StatusMethodNotAllowed)))
}

// fromServiceError maps the service-layer taxonomy to HTTP statuses:
// InvalidArgument/Conflict/InvalidState -> 400, Forbidden -> 403,
// NotFound -> 404, everything else -> 500 with the cause hidden.
func fromServiceError(err error) *ApiError {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return NewInternalServerError(err)
	}

	switch appErr.Code {
	case apperrors.CodeInvalidArgument, apperrors.CodeConflict, apperrors.CodeInvalidState:
		return newApiError(http.StatusBadRequest, appErr.Message)
	case apperrors.CodeForbidden:
		return newApiError(http.StatusForbidden, appErr.Message)
	case apperrors.CodeNotFound:
		return newApiError(http.StatusNotFound, appErr.Message)
	default:
		return NewInternalServerError(err)
	}
}
