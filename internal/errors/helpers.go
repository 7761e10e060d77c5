package errors

import "fmt"

// Constructors for the failures the pipeline reports. Each sets the log
// context key callers filter on and, where safe, a message for API clients.

func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).WithContext("field", field).WithUserMessage(message)
}

func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).WithContext("config_key", key)
}

// NewDatabaseError hides the driver error from API clients.
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, "database "+operation+" failed").
		WithContext("operation", operation).
		WithUserMessage("A storage error occurred")
}

// NewWhatsAppError wraps a failed Cloud API call. retryable follows the
// platform's own classification of the error.
func NewWhatsAppError(operation string, err error, retryable bool) *AppError {
	e := Wrap(err, ErrCodeWhatsAppAPI, "whatsapp "+operation+" failed").
		WithContext("operation", operation).
		WithUserMessage("Failed to send message via WhatsApp")
	e.Retryable = retryable
	return e
}

func NewAIError(provider string, err error) *AppError {
	return Wrap(err, ErrCodeAIProvider, provider+" completion failed").
		WithContext("provider", provider).
		WithUserMessage("The AI provider is unavailable")
}

func NewAINotConfiguredError(provider string) *AppError {
	return New(ErrCodeAINotConfigured, "no API key configured for "+provider).
		WithContext("provider", provider).
		WithUserMessage(provider + " is not configured")
}

func NewNotFoundError(resource, identifier string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	return New(ErrCodeNotFound, msg).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(msg)
}

// NewAuthError is returned when an account belongs to another user.
func NewAuthError(reason string) *AppError {
	return New(ErrCodeAuthorization, reason).WithUserMessage("Access denied")
}

// NewFlowDataError reports a stored flow the interpreter cannot use.
func NewFlowDataError(flowID string, err error) *AppError {
	return Wrap(err, ErrCodeFlowData, "flow data unusable").WithContext("flow_id", flowID)
}
