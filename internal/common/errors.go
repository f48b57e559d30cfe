package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrStorage       = errors.New("storage error")
	ErrTransform     = errors.New("transform error")
	ErrDocumentFetch = errors.New("document fetch error")
	ErrParse         = errors.New("document parse error")
)

// Error codes carried by AppError.
const (
	CodeStorage       = "STORAGE_ERROR"
	CodeTransform     = "TRANSFORM_ERROR"
	CodeDocumentFetch = "DOCUMENT_FETCH_ERROR"
	CodeParse         = "PARSE_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// joined keeps both the sentinel and the underlying error reachable through errors.Is.
func joined(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return errors.Join(sentinel, err)
}

// StorageError marks a Job, User, Document or Artifact store failure.
func StorageError(message string, err error) error {
	return NewAppError(CodeStorage, message, joined(ErrStorage, err))
}

// TransformError marks a failure to explain a single content unit.
func TransformError(message string, err error) error {
	return NewAppError(CodeTransform, message, joined(ErrTransform, err))
}

// DocumentFetchError marks a failure to obtain a job's source document.
func DocumentFetchError(message string, err error) error {
	return NewAppError(CodeDocumentFetch, message, joined(ErrDocumentFetch, err))
}

// ParseError marks a document that could not be split into content units.
func ParseError(message string, err error) error {
	return NewAppError(CodeParse, message, joined(ErrParse, err))
}

// NotFoundError is a normal negative lookup result.
func NotFoundError(message string) error {
	return NewAppError(CodeNotFound, message, ErrNotFound)
}

// InvalidInputError marks a rejected request.
func InvalidInputError(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// GRPCError maps application errors to gRPC status errors.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	// storage first: a storage failure may wrap a NotFound from a lower layer
	switch {
	case errors.Is(err, ErrStorage):
		return status.Error(codes.Unavailable, "storage unavailable")
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// HTTPStatus maps application errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrStorage):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
