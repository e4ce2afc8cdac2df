// Package errors defines the API error types used throughout NoteStash.
package errors

import "fmt"

// APIError represents a NoteStash API error with a machine-readable code,
// human-readable message, and HTTP status code.
type APIError struct {
	// Code is the error code (e.g., "NotFound", "InvalidCredentials").
	Code string
	// Message is a human-readable description of the error.
	Message string
	// HTTPStatus is the HTTP status code to return (e.g., 404, 403).
	HTTPStatus int
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("APIError %s (%d): %s", e.Code, e.HTTPStatus, e.Message)
}

// WithMessage returns a copy of the APIError with the message replaced.
// The copy keeps the same code and status so handlers can still match on it.
func (e *APIError) WithMessage(msg string) *APIError {
	cp := *e
	cp.Message = msg
	return &cp
}

// Pre-defined API errors for common conditions.
var (
	// ErrInvalidInput is returned when required fields are missing or malformed.
	ErrInvalidInput = &APIError{
		Code:       "InvalidInput",
		Message:    "Missing or malformed request fields",
		HTTPStatus: 400,
	}

	// ErrMissingFile is returned when an upload carries no file part.
	ErrMissingFile = &APIError{
		Code:       "MissingFile",
		Message:    "File is required",
		HTTPStatus: 400,
	}

	// ErrInvalidFileType is returned when the uploaded file type is not allowed.
	ErrInvalidFileType = &APIError{
		Code:       "InvalidFileType",
		Message:    "Only .pdf, .jpg, .jpeg, .png files are allowed",
		HTTPStatus: 400,
	}

	// ErrMissingToken is returned when no bearer token is presented.
	ErrMissingToken = &APIError{
		Code:       "MissingToken",
		Message:    "No token provided",
		HTTPStatus: 401,
	}

	// ErrMalformedToken is returned when the Authorization header is not parseable.
	ErrMalformedToken = &APIError{
		Code:       "MalformedToken",
		Message:    "Malformed token",
		HTTPStatus: 401,
	}

	// ErrInvalidToken is returned when token signature or expiry checks fail.
	ErrInvalidToken = &APIError{
		Code:       "InvalidToken",
		Message:    "Invalid token",
		HTTPStatus: 401,
	}

	// ErrInvalidCredentials is returned for unknown email or mismatched password.
	// The same value is used for both so the response reveals nothing about
	// which one was wrong.
	ErrInvalidCredentials = &APIError{
		Code:       "InvalidCredentials",
		Message:    "Invalid credentials",
		HTTPStatus: 401,
	}

	// ErrForbidden is returned when the requester does not own the resource.
	ErrForbidden = &APIError{
		Code:       "Forbidden",
		Message:    "Not authorized",
		HTTPStatus: 403,
	}

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = &APIError{
		Code:       "NotFound",
		Message:    "Not found",
		HTTPStatus: 404,
	}

	// ErrAlreadyExists is returned when signing up with an email already taken.
	ErrAlreadyExists = &APIError{
		Code:       "AlreadyExists",
		Message:    "User exists",
		HTTPStatus: 409,
	}

	// ErrStorage is returned for blob backend I/O failures. Backend detail is
	// logged server-side and never included in the response.
	ErrStorage = &APIError{
		Code:       "StorageError",
		Message:    "Storage backend failure",
		HTTPStatus: 500,
	}

	// ErrInternal is returned for unexpected internal failures.
	ErrInternal = &APIError{
		Code:       "Internal",
		Message:    "We encountered an internal error. Please try again.",
		HTTPStatus: 500,
	}
)
