package tts

import (
	"context"
	"errors"
	"fmt"
)

// Common synthesis errors
var (
	// ErrNoEngineConfigured indicates no synthesis engine has been selected
	ErrNoEngineConfigured = errors.New("no synthesis engine configured - specify --engine mock or --engine piper")

	// ErrEngineNotAvailable indicates the selected engine is not available
	ErrEngineNotAvailable = errors.New("selected synthesis engine is not available")

	// ErrInvalidEngine indicates an unknown engine was specified
	ErrInvalidEngine = errors.New("invalid synthesis engine specified")

	// ErrSynthesisFailed indicates synthesis operation failed
	ErrSynthesisFailed = errors.New("text synthesis failed")

	// ErrEmptyText indicates there was nothing to synthesize
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrTextTooLong indicates the text exceeds the engine limit
	ErrTextTooLong = errors.New("text too long")

	// ErrInvalidSpeed indicates speed value is out of range
	ErrInvalidSpeed = errors.New("speed must be between 0.5 and 2.0")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// TTSError represents a synthesis error with additional context
type TTSError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *TTSError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *TTSError) Unwrap() error {
	return e.Cause
}

// ErrorCode identifies specific error types
type ErrorCode string

const (
	// Engine errors
	ErrorCodeEngineFailure     ErrorCode = "ENGINE_FAILURE"
	ErrorCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorCodeEngineTimeout     ErrorCode = "ENGINE_TIMEOUT"

	// Audio errors
	ErrorCodeAudioFormat ErrorCode = "AUDIO_FORMAT"

	// Input errors
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorCodeTextTooLong  ErrorCode = "TEXT_TOO_LONG"

	// System errors
	ErrorCodeTimeout           ErrorCode = "TIMEOUT"
	ErrorCodeCanceled          ErrorCode = "CANCELED"
	ErrorCodeRateLimited       ErrorCode = "RATE_LIMITED"
	ErrorCodeResourceExhausted ErrorCode = "RESOURCE_EXHAUSTED"
)

// NewTTSError creates a new synthesis error with context
func NewTTSError(code ErrorCode, message string, cause error) *TTSError {
	return &TTSError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *TTSError) WithContext(key string, value interface{}) *TTSError {
	e.Context[key] = value
	return e
}

// IsFatal returns true if the engine should not be used again
func (e *TTSError) IsFatal() bool {
	switch e.Code {
	case ErrorCodeEngineUnavailable,
		ErrorCodeResourceExhausted:
		return true
	default:
		return false
	}
}

// IsRetryable returns true if the operation can be retried
func (e *TTSError) IsRetryable() bool {
	switch e.Code {
	case ErrorCodeTimeout,
		ErrorCodeEngineTimeout,
		ErrorCodeRateLimited:
		return true
	default:
		return false
	}
}

// FromContext converts a context error into a coded error. Other errors
// are returned unchanged.
func FromContext(err error, message string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTTSError(ErrorCodeTimeout, message, errors.Join(ErrTimeout, err))
	case errors.Is(err, context.Canceled):
		return NewTTSError(ErrorCodeCanceled, message, errors.Join(ErrCanceled, err))
	default:
		return err
	}
}
