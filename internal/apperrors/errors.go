// Package apperrors defines the error taxonomy shared by the service layer.
// The API layer maps codes to HTTP statuses.
package apperrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeConflict        Code = "CONFLICT"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeInternal        Code = "INTERNAL"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) *AppError {
	return New(CodeInvalidArgument, msg)
}

func Conflict(msg string) *AppError {
	return New(CodeConflict, msg)
}

func Forbidden(msg string) *AppError {
	return New(CodeForbidden, msg)
}

func NotFound(msg string) *AppError {
	return New(CodeNotFound, msg)
}

func InvalidState(msg string) *AppError {
	return New(CodeInvalidState, msg)
}

func Internal(msg string, cause error) *AppError {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf returns the code carried by err, or CodeUnknown for errors
// outside the taxonomy.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
