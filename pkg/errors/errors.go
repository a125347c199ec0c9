package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedConstruct marks a pattern feature the n-gram compiler
	// refuses to approximate. Callers fall back to a full scan.
	ErrUnsupportedConstruct = errors.New("unsupported regex construct")
	// ErrPatternTooBroad marks a pattern that yields no n-gram constraint.
	// Callers fall back to a full scan.
	ErrPatternTooBroad = errors.New("pattern too broad for the n-gram index")
	// ErrIndexUnavailable marks a missing or empty posting-index partition.
	ErrIndexUnavailable = errors.New("n-gram index unavailable")
	// ErrEvaluatorInvariant marks an internal consistency failure in
	// candidate resolution.
	ErrEvaluatorInvariant = errors.New("evaluator invariant violated")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrCorruptShard       = errors.New("corrupt index shard")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStoreUnavailable   = errors.New("text store unavailable")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
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

// IsFallback reports whether err asks the caller to answer the query with a
// full scan instead of the index.
func IsFallback(err error) bool {
	return errors.Is(err, ErrUnsupportedConstruct) || errors.Is(err, ErrPatternTooBroad)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidPattern), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedConstruct):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
