package service

import (
	"context"
	"errors"
	"time"

	"whatsflow/internal/database"
	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/metrics"
	"whatsflow/internal/models"
	"whatsflow/internal/tracing"
	"whatsflow/pkg/whatsapp"
	"whatsflow/pkg/whatsapp/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Sender delivers outbound messages and records each attempt. Every call is
// persisted and mirrored into the inbox cache whether or not the platform
// accepted it.
type Sender struct {
	client    whatsapp.Client
	messages  MessageStore
	convs     ConversationStore
	publisher Publisher
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewSender wires the Cloud API client to the message log. A nil publisher
// disables live inbox events.
func NewSender(client whatsapp.Client, messages MessageStore, convs ConversationStore, publisher Publisher, timeout time.Duration, logger *logrus.Logger) *Sender {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Sender{
		client:    client,
		messages:  messages,
		convs:     convs,
		publisher: publisher,
		timeout:   timeout,
		logger:    logger,
	}
}

// SendText sends one plain text message.
func (s *Sender) SendText(ctx context.Context, account *models.Account, to, body string) (*models.Message, error) {
	msg := &models.Message{Body: body, Type: models.MessageTypeText}
	return s.deliver(ctx, account, to, msg, "send_text", func(ctx context.Context) (*types.SendResponse, error) {
		return s.client.SendText(ctx, senderOf(account), to, body)
	})
}

// SendButtons sends an interactive message with reply buttons; button id is
// the payload so a tap comes back as rule-matchable text.
func (s *Sender) SendButtons(ctx context.Context, account *models.Account, to, body string, buttons []models.Button) (*models.Message, error) {
	replies := make([]types.ReplyButton, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, types.ReplyButton{ID: b.Payload, Title: b.Text})
	}

	msg := &models.Message{Body: body, Type: models.MessageTypeInteractive}
	return s.deliver(ctx, account, to, msg, "send_buttons", func(ctx context.Context) (*types.SendResponse, error) {
		return s.client.SendInteractiveButtons(ctx, senderOf(account), to, body, replies)
	})
}

// SendMedia sends a media message by public link.
func (s *Sender) SendMedia(ctx context.Context, account *models.Account, to, mediaType, link, caption string) (*models.Message, error) {
	body := caption
	if body == "" {
		body = whatsapp.Placeholder(mediaType)
	}

	msg := &models.Message{
		Body:         body,
		Type:         models.MessageType(mediaType),
		MediaURL:     link,
		MediaCaption: caption,
	}
	return s.deliver(ctx, account, to, msg, "send_media", func(ctx context.Context) (*types.SendResponse, error) {
		return s.client.SendMediaLink(ctx, senderOf(account), to, mediaType, link, caption)
	})
}

func (s *Sender) deliver(ctx context.Context, account *models.Account, to string, msg *models.Message, op string, call func(ctx context.Context) (*types.SendResponse, error)) (*models.Message, error) {
	ctx, span := tracing.StartSpan(ctx, "whatsapp."+op,
		attribute.String("account_id", account.ID),
		attribute.String("message_type", string(msg.Type)),
	)
	defer span.End()

	callCtx, cancel := s.withTimeout(ctx)
	resp, sendErr := call(callCtx)
	cancel()

	msg.AccountID = account.ID
	msg.Direction = models.DirectionOutgoing
	msg.PhoneNumber = to
	msg.Status = models.MessageStatusSent
	if sendErr != nil {
		msg.Status = models.MessageStatusFailed
		var apiErr *whatsapp.APIError
		retryable := errors.As(sendErr, &apiErr) && apiErr.Retryable()
		sendErr = apperrors.NewWhatsAppError(op, sendErr, retryable)
		tracing.RecordError(ctx, sendErr)
	} else {
		msg.WhatsAppMessageID = resp.MessageID()
	}

	metrics.IncrementCounter(metrics.OutboundMessagesTotal, map[string]string{
		"status": string(msg.Status),
		"type":   string(msg.Type),
	}, "Outbound messages by delivery status")

	fields := contactFields(ctx, account.ID, to, msg.WhatsAppMessageID)
	fields[LogFieldOperation] = op
	if sendErr != nil {
		s.logger.WithFields(fields).WithError(sendErr).Error("Failed to send WhatsApp message")
	} else {
		s.logger.WithFields(fields).Debug("WhatsApp message sent")
	}

	if err := s.record(ctx, msg); err != nil {
		s.logger.WithFields(fields).WithError(err).Error("Failed to record outbound message")
		if sendErr == nil {
			return msg, err
		}
	}
	return msg, sendErr
}

// record persists an outbound attempt. It runs detached from the caller's
// cancellation so a timed-out send is still logged.
func (s *Sender) record(ctx context.Context, msg *models.Message) error {
	ctx = context.WithoutCancel(ctx)

	if _, err := s.messages.SaveMessage(ctx, msg); err != nil {
		return apperrors.NewDatabaseError("save outbound message", err)
	}
	s.publisher.Publish(*msg)

	if err := s.convs.TouchConversation(ctx, database.ConversationUpdate{
		AccountID:     msg.AccountID,
		ContactNumber: msg.PhoneNumber,
		LastMessage:   msg.Body,
		LastMessageAt: msg.CreatedAt,
	}); err != nil {
		return apperrors.NewDatabaseError("touch conversation", err)
	}
	return nil
}

func (s *Sender) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func senderOf(account *models.Account) whatsapp.Sender {
	return whatsapp.Sender{
		PhoneNumberID: account.PhoneNumberID,
		AccessToken:   account.AccessToken,
	}
}
