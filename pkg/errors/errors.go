package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures: timeouts, non-2xx, DNS
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML or payload parsing errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents rate limiting by the source site
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents rejected input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeStorage represents ledger errors
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeWorker represents calendar worker process failures
	ErrorTypeWorker ErrorType = "worker"
)

// Error is the typed error used across the pipeline
type Error struct {
	Type    ErrorType
	Source  string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Source != "" {
		prefix += " " + e.Source + ":"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s - %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable by a caller.
// Nothing inside the pipeline retries on its own.
func (e *Error) IsRetryable() bool {
	return e.Type == ErrorTypeNetwork
}

// New creates a new Error
func New(errType ErrorType, source, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *Error {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *Error {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, duration time.Duration) *Error {
	return New(ErrorTypeRateLimit, source, fmt.Sprintf("rate limited for %v", duration), nil)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *Error {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *Error {
	return New(ErrorTypePublisher, source, message, err)
}

// NewValidation creates a new validation error
func NewValidation(source, message string) *Error {
	return New(ErrorTypeValidation, source, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *Error {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewStorage creates a new storage error
func NewStorage(source, message string, err error) *Error {
	return New(ErrorTypeStorage, source, message, err)
}

// NewWorker creates a new worker process error
func NewWorker(source, message string, err error) *Error {
	return New(ErrorTypeWorker, source, message, err)
}

// TypeOf returns the type of the first *Error in the chain, or "" if none
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsValidation reports whether err carries a validation error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsRateLimit reports whether err carries a rate limit error
func IsRateLimit(err error) bool {
	return TypeOf(err) == ErrorTypeRateLimit
}

// IsRetryable reports whether a caller may retry the failed unit of work
func IsRetryable(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.IsRetryable()
}
