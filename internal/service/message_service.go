package service

import (
	"context"
	"strings"

	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/models"
	"whatsflow/internal/validation"
	"whatsflow/pkg/media"

	"github.com/sirupsen/logrus"
)

// SendRequest is a manual send from the shared inbox.
type SendRequest struct {
	ToPhoneNumber     string `json:"toPhoneNumber"`
	MessageBody       string `json:"messageBody"`
	WhatsAppAccountID string `json:"whatsappAccountId"`
	UserID            string `json:"userId"`
	MediaURL          string `json:"mediaUrl"`
	MediaType         string `json:"mediaType"`
	MediaCaption      string `json:"mediaCaption"`
}

// ChatRequest is a direct AI chat call from the dashboard.
type ChatRequest struct {
	Provider          string `json:"-"`
	Message           string `json:"message"`
	WhatsAppAccountID string `json:"whatsappAccountId"`
	PreferredLanguage string `json:"preferredLanguage"`
}

// MessageService backs the dashboard's outbound endpoints.
type MessageService struct {
	accounts  AccountStore
	sender    *Sender
	responder *Responder
	logger    *logrus.Logger
}

func NewMessageService(accounts AccountStore, sender *Sender, responder *Responder, logger *logrus.Logger) *MessageService {
	return &MessageService{
		accounts:  accounts,
		sender:    sender,
		responder: responder,
		logger:    logger,
	}
}

// SendManual validates req and sends it as text or as a media link. The
// stored message is returned even when the platform rejected the send.
func (s *MessageService) SendManual(ctx context.Context, req SendRequest) (*models.Message, error) {
	if err := validation.ValidateRequired(req.WhatsAppAccountID, "whatsappAccountId"); err != nil {
		return nil, err
	}
	if err := validation.ValidateRequired(req.UserID, "userId"); err != nil {
		return nil, err
	}
	to, err := validation.NormalizePhoneNumber(req.ToPhoneNumber)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateMessageContent(req.MessageBody, req.MediaURL, req.MediaCaption); err != nil {
		return nil, err
	}

	account, err := s.ownedAccount(ctx, req.WhatsAppAccountID, req.UserID)
	if err != nil {
		return nil, err
	}

	if link := strings.TrimSpace(req.MediaURL); link != "" {
		if err := media.ValidateLink(link); err != nil {
			return nil, apperrors.NewValidationError("mediaUrl", err.Error())
		}
		mediaType, err := media.ResolveType(req.MediaType, link)
		if err != nil {
			return nil, apperrors.NewValidationError("mediaType", err.Error())
		}
		caption := req.MediaCaption
		if caption == "" {
			caption = req.MessageBody
		}
		return s.sender.SendMedia(ctx, account, to, mediaType, link, caption)
	}

	return s.sender.SendText(ctx, account, to, req.MessageBody)
}

// Chat returns a completion for a message typed in the dashboard. When an
// account is given its system prompt and key are used.
func (s *MessageService) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if err := validation.ValidateRequired(req.Message, "message"); err != nil {
		return "", err
	}
	if s.responder == nil {
		return "", apperrors.NewAINotConfiguredError(req.Provider)
	}

	aiReq := AIRequest{
		Text:              req.Message,
		Provider:          req.Provider,
		PreferredLanguage: req.PreferredLanguage,
	}
	if req.WhatsAppAccountID != "" {
		account, err := s.accounts.GetAccount(ctx, req.WhatsAppAccountID)
		if err != nil {
			return "", apperrors.NewDatabaseError("load account", err)
		}
		if account == nil {
			return "", apperrors.NewNotFoundError("account", req.WhatsAppAccountID)
		}
		aiReq.Account = account
	}

	reply, err := s.responder.Reply(ctx, aiReq)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			LogFieldProvider:  req.Provider,
			LogFieldAccountID: req.WhatsAppAccountID,
		}).WithError(err).Warn("AI chat request failed")
		return "", err
	}
	return reply, nil
}

func (s *MessageService) ownedAccount(ctx context.Context, accountID, userID string) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load account", err)
	}
	if account == nil {
		return nil, apperrors.NewNotFoundError("account", accountID)
	}
	if account.UserID != userID {
		return nil, apperrors.NewAuthError("account does not belong to user")
	}
	return account, nil
}
