package http

import (
	"fmt"
	"net/http"
)

// AppError carries an HTTP status alongside the error payload.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// NotFoundErrorf creates a 404 error.
func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return &AppError{
		Code:    "ERR_NOT_FOUND",
		Message: fmt.Sprintf(format, a...),
		Status:  http.StatusNotFound,
	}
}
