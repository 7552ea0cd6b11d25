package services

import (
	"errors"
	"fmt"

	"github.com/mrpayong/terual-accounting/repositories"
	"github.com/mrpayong/terual-accounting/utils"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeUnauthenticated ErrorType = "unauthenticated"
	ErrorTypeForbidden       ErrorType = "forbidden"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeDuplicateKey    ErrorType = "duplicate_key"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeUpstream        ErrorType = "upstream"
	ErrorTypeInternal        ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail returns a copy of the error carrying one more detail.
// Sentinels are shared, so they are never mutated in place.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	c := e.clone()
	c.Details[key] = value
	return c
}

// Wrap returns a copy of the error with err as its cause
func (e *DomainError) Wrap(err error) *DomainError {
	c := e.clone()
	c.Err = err
	return c
}

func (e *DomainError) clone() *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	return &DomainError{Type: e.Type, Message: e.Message, Err: e.Err, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Authentication
	ErrUnauthenticated = NewDomainError(ErrorTypeUnauthenticated, "not authenticated", nil)

	// Authorization
	ErrForbidden = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)

	// Not found
	ErrNotFound            = NewDomainError(ErrorTypeNotFound, "resource not found", nil)
	ErrUserNotFound        = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrTransactionNotFound = NewDomainError(ErrorTypeNotFound, "transaction not found", nil)
	ErrAccountNotFound     = NewDomainError(ErrorTypeNotFound, "account not found", nil)
	ErrCashflowNotFound    = NewDomainError(ErrorTypeNotFound, "cashflow statement not found", nil)

	// Conflicts
	ErrDuplicateKey       = NewDomainError(ErrorTypeDuplicateKey, "record already exists", nil)
	ErrDuplicateReference = NewDomainError(ErrorTypeDuplicateKey, "reference number already exists", nil)

	// Validation
	ErrInvalidInput           = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrMissingAuthorityNumber = NewDomainError(ErrorTypeValidation, "receipt has no authority-to-print number", nil)
	ErrNotAReceipt            = NewDomainError(ErrorTypeValidation, "image is not a receipt", nil)
	ErrUnsupportedImage       = NewDomainError(ErrorTypeValidation, "unsupported image", nil)

	// Upstream (storage or inference transport)
	ErrUpstream        = NewDomainError(ErrorTypeUpstream, "upstream service failed", nil)
	ErrInferenceFailed = NewDomainError(ErrorTypeUpstream, "receipt inference failed", nil)

	// Internal
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsUnauthenticatedError checks if an error is an unauthenticated error
func IsUnauthenticatedError(err error) bool { return isType(err, ErrorTypeUnauthenticated) }

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool { return isType(err, ErrorTypeForbidden) }

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// IsDuplicateKeyError checks if an error is a uniqueness violation
func IsDuplicateKeyError(err error) bool { return isType(err, ErrorTypeDuplicateKey) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsUpstreamError checks if an error is a storage or inference transport failure
func IsUpstreamError(err error) bool { return isType(err, ErrorTypeUpstream) }

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool { return isType(err, ErrorTypeInternal) }

// AsDomainError returns the first DomainError in err's chain
func AsDomainError(err error) (*DomainError, bool) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapUpstream wraps an error as an upstream failure
func WrapUpstream(message string, err error) error {
	return NewDomainError(ErrorTypeUpstream, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// FromStorage classifies a repository error. notFound is returned (wrapping err)
// for a missing row; a uniqueness violation becomes ErrDuplicateKey; domain errors
// pass through; anything else is an upstream storage failure.
func FromStorage(err error, notFound *DomainError) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repositories.ErrNotFound):
		if notFound == nil {
			notFound = ErrNotFound
		}
		return notFound.Wrap(err)
	case errors.Is(err, repositories.ErrDuplicateKey):
		return ErrDuplicateKey.Wrap(err)
	default:
		return WrapUpstream("storage operation failed", err)
	}
}

// FromValidation converts a struct validation failure into ErrInvalidInput
// carrying the per-field messages
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	if fields := utils.GetValidationFields(err); fields != nil {
		return ErrInvalidInput.WithDetail("fields", fields)
	}
	return ErrInvalidInput.Wrap(err)
}
