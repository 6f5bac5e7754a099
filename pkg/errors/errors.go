package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnsupportedVersion   = errors.New("unsupported emote registry version")
	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrRemote               = errors.New("remote request failed")
	ErrRateLimited          = errors.New("rate limit exceeded")
	ErrInternal             = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status an HTTP handler should answer
// with. Remote failures keep their own code on the AppError for logging but
// surface to our callers as a bad gateway.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && !errors.Is(appErr.Err, ErrRemote) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedFormat), errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode returns the status code carried by an AppError anywhere in the
// chain, or 0.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 0
}
