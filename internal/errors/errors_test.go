package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	cause := stderrors.New("connection reset")

	assert.Equal(t, "NOT_FOUND: account not found", New(ErrCodeNotFound, "account not found").Error())
	assert.Equal(t, "WHATSAPP_API: send failed: connection reset", Wrap(cause, ErrCodeWhatsAppAPI, "send failed").Error())
}

func TestAppError_ChainHelpers(t *testing.T) {
	cause := stderrors.New("boom")
	appErr := WrapRetryable(cause, ErrCodeWhatsAppAPI, "send failed")
	wrapped := fmt.Errorf("handling inbound: %w", appErr)

	assert.True(t, stderrors.Is(wrapped, cause))
	assert.True(t, stderrors.Is(wrapped, New(ErrCodeWhatsAppAPI, "")))
	assert.False(t, stderrors.Is(wrapped, New(ErrCodeAIProvider, "")))
	assert.True(t, IsRetryable(wrapped))
	assert.Equal(t, ErrCodeWhatsAppAPI, GetCode(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeWhatsAppAPI))

	assert.False(t, IsRetryable(cause))
	assert.Equal(t, ErrCodeInternalError, GetCode(cause))
}

func TestGetUserMessage(t *testing.T) {
	assert.Equal(t, "openai is not configured", GetUserMessage(NewAINotConfiguredError("openai")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(stderrors.New("raw")))
	assert.Equal(t, "An internal error occurred", GetUserMessage(New(ErrCodeInternalError, "x")))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code ErrorCode
		key  string
	}{
		{"validation", NewValidationError("toPhoneNumber", "toPhoneNumber is required"), ErrCodeValidationFailed, "field"},
		{"config", NewConfigError("ai.max_tokens", "negative"), ErrCodeInvalidConfig, "config_key"},
		{"database", NewDatabaseError("save message", stderrors.New("locked")), ErrCodeDatabaseQuery, "operation"},
		{"whatsapp", NewWhatsAppError("send text", stderrors.New("401"), false), ErrCodeWhatsAppAPI, "operation"},
		{"ai", NewAIError("gemini", stderrors.New("500")), ErrCodeAIProvider, "provider"},
		{"not found", NewNotFoundError("account", "acc-1"), ErrCodeNotFound, "identifier"},
		{"flow", NewFlowDataError("flow-1", stderrors.New("bad json")), ErrCodeFlowData, "flow_id"},
		{"auth", NewAuthError("account belongs to another user"), ErrCodeAuthorization, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			if tt.key != "" {
				assert.Contains(t, tt.err.Context, tt.key)
			}
		})
	}

	assert.True(t, NewWhatsAppError("send", nil, true).Retryable)
}

func TestLogger_LogError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	err := NewAIError("openai", stderrors.New("timeout"))
	logger.LogError(err, "AI reply failed", logrus.Fields{"account_id": "acc-1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "AI reply failed", entry["msg"])
	assert.Equal(t, "AI_PROVIDER", entry["error_code"])
	assert.Equal(t, "openai", entry["provider"])
	assert.Equal(t, "acc-1", entry["account_id"])
}

func TestLogger_LogRetryableError(t *testing.T) {
	var buf bytes.Buffer
	logger := WrapLogger(logrus.New())
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	logger.LogRetryableError(WrapRetryable(stderrors.New("503"), ErrCodeWhatsAppAPI, "send failed"), "send failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, true, entry["retryable"])
}

func TestFields(t *testing.T) {
	assert.Empty(t, Fields(stderrors.New("plain")))

	fields := Fields(fmt.Errorf("outer: %w", NewNotFoundError("flow", "flow-9")))
	assert.Equal(t, ErrCodeNotFound, fields["error_code"])
	assert.Equal(t, false, fields["retryable"])
	assert.Equal(t, "flow-9", fields["identifier"])
}
