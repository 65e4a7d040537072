package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Chain.Generate when every provider failed.
var ErrExhausted = errors.New("llm: all providers failed")

// Error represents a provider-neutral generation error.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeRequestTooLarge ErrorType = "request_too_large"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeProvider        ErrorType = "provider"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeTimeout         ErrorType = "timeout"
	ErrorTypeMalformed       ErrorType = "malformed_response"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

func errorType(err error) (ErrorType, bool) {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type, true
	}
	return "", false
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeRateLimit
}

// IsRequestTooLargeError checks if an error is a request too large error.
func IsRequestTooLargeError(err error) bool {
	t, ok := errorType(err)
	return ok && t == ErrorTypeRequestTooLarge
}

// IsTimeoutError reports whether err, or any error joined into it, is a
// timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := errorType(err); ok && t == ErrorTypeTimeout {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if IsTimeoutError(e) {
				return true
			}
		}
	}
	if wrapped := errors.Unwrap(err); wrapped != nil {
		return IsTimeoutError(wrapped)
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		ProviderErr: providerErr,
	}
}

// NewRequestTooLargeError creates a new request too large error.
func NewRequestTooLargeError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRequestTooLarge,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewStatusError creates a provider error for a non-success HTTP status.
func NewStatusError(provider string, status int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     fmt.Sprintf("%s returned status %d", provider, status),
		Retryable:   status >= 500,
		StatusCode:  status,
		ProviderErr: providerErr,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeTimeout,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// NewMalformedResponseError creates an error for a reply with no usable text.
func NewMalformedResponseError(message string) *Error {
	return &Error{
		Type:    ErrorTypeMalformed,
		Message: message,
	}
}

// FromContext classifies a transport error, turning deadline expiry into a
// timeout and anything else that is not already an *Error into a network
// error.
func FromContext(ctx context.Context, provider string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errorType(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError(provider+" request timed out", err)
	}
	return &Error{
		Type:        ErrorTypeNetwork,
		Message:     provider + " request failed",
		Retryable:   true,
		ProviderErr: err,
	}
}
