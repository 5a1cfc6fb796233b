package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRasterization ErrorType = "rasterization"
	ErrorTypeRequest       ErrorType = "request"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeIO            ErrorType = "io"
	ErrorTypeCache         ErrorType = "cache"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func RasterizationError(message string, err error) *DomainError {
	return NewError(ErrorTypeRasterization, message, err)
}

func RequestError(message string, err error) *DomainError {
	return NewError(ErrorTypeRequest, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func CacheError(message string, err error) *DomainError {
	return NewError(ErrorTypeCache, message, err)
}

// IsType reports whether err carries a DomainError of the given type
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Type == t
}

// TransportKind classifies a failed inference call
type TransportKind string

const (
	TransportTimeout    TransportKind = "timeout"
	TransportConnection TransportKind = "connection"
	TransportHTTP       TransportKind = "http"
	TransportAuth       TransportKind = "auth"
	TransportCancelled  TransportKind = "cancelled"
)

// TransportError describes why an inference call produced no response
type TransportError struct {
	Kind       TransportKind
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same request may succeed
func (e *TransportError) Transient() bool {
	switch e.Kind {
	case TransportTimeout, TransportConnection:
		return true
	case TransportHTTP:
		return IsRetryableStatus(e.StatusCode)
	default:
		return false
	}
}

// IsRetryableStatus reports whether an HTTP status is worth retrying
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func TimeoutError(message string, err error) *TransportError {
	return &TransportError{Kind: TransportTimeout, Message: message, Err: err}
}

func ConnectionError(message string, err error) *TransportError {
	return &TransportError{Kind: TransportConnection, Message: message, Err: err}
}

func HTTPStatusError(status int, message string, err error) *TransportError {
	return &TransportError{Kind: TransportHTTP, StatusCode: status, Message: message, Err: err}
}

func AuthError(status int, message string, err error) *TransportError {
	return &TransportError{Kind: TransportAuth, StatusCode: status, Message: message, Err: err}
}

func CancelledError(err error) *TransportError {
	return &TransportError{Kind: TransportCancelled, Message: "request cancelled", Err: err}
}
