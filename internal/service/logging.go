package service

import (
	"context"

	"whatsflow/internal/privacy"

	"github.com/sirupsen/logrus"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks a context whose logs may carry unmasked contact data.
const VerboseContextKey ContextKey = "verbose"

// WithVerbose returns ctx tagged with the verbose flag.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// contactFields returns log fields for one conversation, masked unless verbose.
func contactFields(ctx context.Context, accountID, contact, messageID string) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return logrus.Fields{
			LogFieldAccountID: accountID,
			LogFieldContact:   contact,
			LogFieldMessageID: messageID,
		}
	}
	return logrus.Fields{
		LogFieldAccountID: accountID,
		LogFieldContact:   privacy.MaskPhoneNumber(contact),
		LogFieldMessageID: privacy.MaskMessageID(messageID),
	}
}

// bodyField returns the message body for logs, truncated unless verbose.
func bodyField(ctx context.Context, body string) string {
	if IsVerboseLogging(ctx) {
		return body
	}
	return privacy.MaskBody(body)
}
