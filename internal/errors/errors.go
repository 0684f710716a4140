package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/url-indexer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryAuth represents credential or token acquisition errors
	CategoryAuth ErrorCategory = "auth"
	// CategoryAccess represents site-ownership or provider 403 errors
	CategoryAccess ErrorCategory = "access"
	// CategoryRateLimit represents provider 429 errors and exhausted quotas
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryProvider represents any other non-success provider response
	CategoryProvider ErrorCategory = "provider"
	// CategoryNotFound represents missing apps or sitemaps
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLocal represents cache or persistence I/O failures
	CategoryLocal ErrorCategory = "local"
	// CategoryValidation represents bad user input
	CategoryValidation ErrorCategory = "validation"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewAuthError creates an error for missing or invalid credentials/tokens.
func NewAuthError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuth,
		StatusCode: http.StatusUnauthorized,
		Code:       "AUTH_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewAccessError creates an error for a failed site-ownership check or a
// provider 403.
func NewAccessError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAccess,
		StatusCode: http.StatusForbidden,
		Code:       "ACCESS_DENIED",
		Message:    message,
	}
}

// NewRateLimitError creates an error for a provider 429 or exhausted quota.
func NewRateLimitError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMITED",
		Message:    message,
	}
}

// NewProviderError creates an error for any other non-success provider
// response, including malformed bodies.
func NewProviderError(message string, statusCode int, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    message,
		Cause:      cause,
		Details: map[string]interface{}{
			"providerStatus": statusCode,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewLocalFailure creates an error for cache or persistence I/O failures.
func NewLocalFailure(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLocal,
		StatusCode: http.StatusInternalServerError,
		Code:       "LOCAL_FAILURE",
		Message:    fmt.Sprintf("storage error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return &CategorizedError{
		Category:   CategoryLocal,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    "unexpected error",
		Cause:      err,
	}
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category ErrorCategory) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == category
}

// IsRateLimit reports whether err is a rate-limit error.
func IsRateLimit(err error) bool {
	return IsCategory(err, CategoryRateLimit)
}

// IsAccess reports whether err is an access (403) error.
func IsAccess(err error) bool {
	return IsCategory(err, CategoryAccess)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}
