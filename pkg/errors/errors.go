// Package errors provides a structured error system for gencache with error
// codes, categories, and context.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cache engine operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Resource errors
	ErrCodeCacheFull         ErrorCode = "CACHE_FULL"
	ErrCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
	ErrCodeLimitExceeded     ErrorCode = "LIMIT_EXCEEDED"

	// State errors
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrCodeNotStarted     ErrorCode = "NOT_STARTED"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"

	// Snapshot errors
	ErrCodeSnapshotEncode  ErrorCode = "SNAPSHOT_ENCODE"
	ErrCodeSnapshotDecode  ErrorCode = "SNAPSHOT_DECODE"
	ErrCodeSnapshotEntry   ErrorCode = "SNAPSHOT_ENTRY"
	ErrCodeSnapshotVersion ErrorCode = "SNAPSHOT_VERSION"

	// Cluster errors
	ErrCodeNodeUnreachable ErrorCode = "NODE_UNREACHABLE"
	ErrCodeNodeNotFound    ErrorCode = "NODE_NOT_FOUND"
	ErrCodeNodeExists      ErrorCode = "NODE_EXISTS"

	// Operation errors
	ErrCodeProducerFailed   ErrorCode = "PRODUCER_FAILED"
	ErrCodeKeyGeneration    ErrorCode = "KEY_GENERATION"
	ErrCodeUnknownStrategy  ErrorCode = "UNKNOWN_STRATEGY"
	ErrCodeOperationTimeout ErrorCode = "OPERATION_TIMEOUT"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryResource      ErrorCategory = "resource"
	CategoryState         ErrorCategory = "state"
	CategorySnapshot      ErrorCategory = "snapshot"
	CategoryCluster       ErrorCategory = "cluster"
	CategoryOperation     ErrorCategory = "operation"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError represents a structured error with context and metadata.
type CacheError struct {
	Code     ErrorCode              `json:"code"`
	Category ErrorCategory          `json:"category"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`

	Cause     error     `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if cacheErr, ok := target.(*CacheError); ok {
		return e.Code == cacheErr.Code
	}
	return false
}

// JSON returns the error as a JSON string.
func (e *CacheError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal error: %s"}`, err.Error())
	}
	return string(data)
}

// WithDetail attaches a detail key/value pair and returns the error.
func (e *CacheError) WithDetail(key string, value interface{}) *CacheError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithComponent sets the originating component and returns the error.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation sets the operation name and returns the error.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// New creates a new structured cache error.
func New(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf creates a new structured cache error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *CacheError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a structured error wrapping an underlying cause.
func Wrap(cause error, code ErrorCode, message string) *CacheError {
	e := New(code, message)
	e.Cause = cause
	return e
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "CACHE_") || strings.HasPrefix(codeStr, "RESOURCE_") ||
		strings.HasPrefix(codeStr, "LIMIT_"):
		return CategoryResource
	case strings.HasPrefix(codeStr, "ALREADY_") || strings.HasPrefix(codeStr, "NOT_STARTED") ||
		strings.HasPrefix(codeStr, "INVALID_STATE"):
		return CategoryState
	case strings.HasPrefix(codeStr, "SNAPSHOT_"):
		return CategorySnapshot
	case strings.HasPrefix(codeStr, "NODE_"):
		return CategoryCluster
	case strings.HasPrefix(codeStr, "PRODUCER_") || strings.HasPrefix(codeStr, "KEY_") ||
		strings.HasPrefix(codeStr, "UNKNOWN_") || strings.HasPrefix(codeStr, "OPERATION_"):
		return CategoryOperation
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		ErrCodeNodeUnreachable:   true,
		ErrCodeOperationTimeout:  true,
		ErrCodeResourceExhausted: true,
		ErrCodeInternalError:     true,
	}
	return retryableCodes[code]
}

// IsRetryable reports whether err carries a retryable cache error code.
func IsRetryable(err error) bool {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Retryable
	}
	return false
}

// CodeOf extracts the error code from err, or ErrCodeInternalError if err is
// not a structured cache error.
func CodeOf(err error) ErrorCode {
	if cacheErr, ok := err.(*CacheError); ok {
		return cacheErr.Code
	}
	return ErrCodeInternalError
}
