package errors

import (
	"errors"
	"strings"
)

// ErrorCode classifies an AppError for logging and API responses.
type ErrorCode string

const (
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeDatabaseQuery    ErrorCode = "DATABASE_QUERY"
	ErrCodeFlowData         ErrorCode = "FLOW_DATA"

	ErrCodeWhatsAppAPI     ErrorCode = "WHATSAPP_API"
	ErrCodeAIProvider      ErrorCode = "AI_PROVIDER"
	ErrCodeAINotConfigured ErrorCode = "AI_NOT_CONFIGURED"

	ErrCodeAuthorization ErrorCode = "AUTHORIZATION"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

const genericUserMessage = "An internal error occurred"

// AppError carries a code, an optional cause and log context. UserMessage
// is the only part that is safe to return to API callers.
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches any AppError with the same code, so a bare New(code, "")
// works as an errors.Is sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message, Cause: err}
}

// WrapRetryable is Wrap with Retryable set.
func WrapRetryable(err error, code ErrorCode, message string) *AppError {
	appErr := Wrap(err, code, message)
	appErr.Retryable = true
	return appErr
}

// As returns the outermost AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable
}

// GetCode returns ErrCodeInternalError for errors outside this package.
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetUserMessage never leaks an internal error string.
func GetUserMessage(err error) string {
	appErr, ok := As(err)
	if !ok || appErr.UserMessage == "" {
		return genericUserMessage
	}
	return appErr.UserMessage
}
