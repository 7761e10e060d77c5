package service

import (
	"context"
	"errors"
	"testing"

	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/models"
	"whatsflow/pkg/whatsapp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_SendText(t *testing.T) {
	env := newTestEnv(t, models.AIConfig{}, nil)

	msg, err := env.sender.SendText(context.Background(), env.account, "15550002", "hello there")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, models.DirectionOutgoing, msg.Direction)
	assert.Equal(t, models.MessageStatusSent, msg.Status)
	assert.Equal(t, "wamid.out-1", msg.WhatsAppMessageID)

	conv, err := env.db.GetConversation(context.Background(), env.account.ID, "15550002")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "hello there", conv.LastMessage)

	published := env.publisher.Messages()
	require.Len(t, published, 1)
	assert.Equal(t, msg.ID, published[0].ID)
}

func TestSender_SendButtonsMapsPayloadToID(t *testing.T) {
	env := newTestEnv(t, models.AIConfig{}, nil)

	msg, err := env.sender.SendButtons(context.Background(), env.account, "15550002", "Pick one:", []models.Button{
		{Text: "Yes", Payload: "confirm_yes"},
		{Text: "No", Payload: "confirm_no"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeInteractive, msg.Type)

	sent := env.client.Sent()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Buttons, 2)
	assert.Equal(t, "confirm_yes", sent[0].Buttons[0].ID)
	assert.Equal(t, "Yes", sent[0].Buttons[0].Title)
}

func TestSender_SendMedia(t *testing.T) {
	env := newTestEnv(t, models.AIConfig{}, nil)

	tests := []struct {
		name     string
		caption  string
		wantBody string
	}{
		{"with caption", "Invoice attached", "Invoice attached"},
		{"without caption", "", "[document message]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := env.sender.SendMedia(context.Background(), env.account, "15550002", "document", "https://example.com/invoice.pdf", tt.caption)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBody, msg.Body)
			assert.Equal(t, models.MessageType("document"), msg.Type)
			assert.Equal(t, "https://example.com/invoice.pdf", msg.MediaURL)
			assert.Equal(t, tt.caption, msg.MediaCaption)
		})
	}
}

func TestSender_FailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, models.AIConfig{}, nil)
	env.client.sendErr = &whatsapp.APIError{StatusCode: 503, Message: "service unavailable"}

	msg, err := env.sender.SendText(context.Background(), env.account, "15550002", "hello")
	require.Error(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, models.MessageStatusFailed, msg.Status)
	assert.NotZero(t, msg.ID, "failed sends are still persisted")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeWhatsAppAPI))
	assert.True(t, apperrors.IsRetryable(err))

	var apiErr *whatsapp.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestSender_NonRetryableFailure(t *testing.T) {
	env := newTestEnv(t, models.AIConfig{}, nil)
	env.client.sendErr = &whatsapp.APIError{StatusCode: 400, Code: 131030, Message: "recipient not allowed"}

	_, err := env.sender.SendText(context.Background(), env.account, "15550002", "hello")
	require.Error(t, err)
	assert.False(t, apperrors.IsRetryable(err))
}
