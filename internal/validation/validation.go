package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"whatsflow/internal/errors"
	"whatsflow/pkg/constants"
)

// NormalizePhoneNumber strips formatting from a recipient number and returns
// the bare digits the Cloud API expects.
func NormalizePhoneNumber(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", errors.NewValidationError("toPhoneNumber", "phone number cannot be empty")
	}

	var b strings.Builder
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", errors.NewValidationError("toPhoneNumber", "phone number must contain only digits")
		}
	}

	digits := b.String()
	if len(digits) < constants.MinPhoneNumberDigits || len(digits) > constants.MaxPhoneNumberDigits {
		return "", errors.NewValidationError("toPhoneNumber",
			fmt.Sprintf("phone number must be between %d and %d digits", constants.MinPhoneNumberDigits, constants.MaxPhoneNumberDigits))
	}
	return digits, nil
}

// ValidateRequired rejects blank values.
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fieldName, fmt.Sprintf("%s is required", fieldName))
	}
	return nil
}

// ValidateStringLength validates string length in characters against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	n := utf8.RuneCountInString(value)
	if n < minLength {
		return errors.NewValidationError(fieldName,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}
	if n > maxLength {
		return errors.NewValidationError(fieldName,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}
	return nil
}

// ValidateMessageContent requires a text body or a media link, and bounds both.
func ValidateMessageContent(body, mediaURL, caption string) error {
	if strings.TrimSpace(body) == "" && strings.TrimSpace(mediaURL) == "" {
		return errors.NewValidationError("messageBody", "messageBody or mediaUrl is required")
	}
	if err := ValidateStringLength(body, "messageBody", 0, constants.MaxTextBodyLength); err != nil {
		return err
	}
	return ValidateStringLength(caption, "mediaCaption", 0, constants.MaxMediaCaptionLength)
}

// ValidateRetentionDays validates data retention period
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.NewConfigError("retentionDays", "retention days must be at least 1")
	}
	if days > 3650 {
		return errors.NewConfigError("retentionDays", "retention days too large (max 3650)")
	}
	return nil
}

// ValidateTimeoutMs validates a millisecond timeout setting.
func ValidateTimeoutMs(timeoutMs int, fieldName string) error {
	if timeoutMs < 100 {
		return errors.NewConfigError(fieldName, fmt.Sprintf("%s must be at least 100ms", fieldName))
	}
	if timeoutMs > 300000 {
		return errors.NewConfigError(fieldName, fmt.Sprintf("%s too large (max 300000ms)", fieldName))
	}
	return nil
}
