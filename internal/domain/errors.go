package domain

import (
	"errors"
	"fmt"
)

// DomainError is a failure the API can explain to the caller. Code selects
// the HTTP status, Message is what the caller sees.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError with the same code and message, so a sentinel
// re-raised with a cause still satisfies errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// WithCause returns a copy of e carrying err
func (e *DomainError) WithCause(err error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Err: err}
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "all fields are required")
	ErrInvalidFlow          = NewDomainError(ErrCodeValidation, "invalid flow: must be aprendiz, instructor or administrativo")
	ErrInvalidFileType      = NewDomainError(ErrCodeValidation, "file type not allowed: use PDF or DOC/DOCX")
	ErrFragmentWithoutDoc   = NewDomainError(ErrCodeValidation, "fragment has no parent document")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrFragmentNotFound  = NewDomainError(ErrCodeNotFound, "fragment not found")
	ErrAdminUserNotFound = NewDomainError(ErrCodeNotFound, "admin user not found")
	ErrAPIKeyNotFound    = NewDomainError(ErrCodeNotFound, "api key not found")
)

// Already exists errors
var (
	ErrDocumentAlreadyExists  = NewDomainError(ErrCodeAlreadyExists, "a document with the same code and version already exists")
	ErrAdminUserAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "admin user already exists")
	ErrAPIKeyAlreadyExists    = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrAPIKeyRevoked = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInvalidAPIKey = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrNotAdmin      = NewDomainError(ErrCodeForbidden, "caller is not an administrator")
)

// Storage errors
var (
	ErrStorageNotConfigured = NewDomainError(ErrCodeInternalError, "object storage not configured: S3_ENDPOINT required")
	ErrSearchNotConfigured  = NewDomainError(ErrCodeInvalidOperation, "semantic search not configured: OPENAI_API_KEY required")
)
