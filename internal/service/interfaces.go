package service

import (
	"context"

	"whatsflow/internal/database"
	"whatsflow/internal/models"
)

// AccountStore resolves accounts by id or inbound routing key.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Account, error)
}

// ConversationStore owns the per-contact inbox cache and flow position.
type ConversationStore interface {
	GetConversation(ctx context.Context, accountID, contact string) (*models.Conversation, error)
	TouchConversation(ctx context.Context, u database.ConversationUpdate) error
	SetFlowState(ctx context.Context, accountID, contact, flowID, nodeID string) error
	AdvanceFlowState(ctx context.Context, accountID, contact, flowID, expectedNodeID, nextNodeID string) (bool, error)
	ClearFlowState(ctx context.Context, accountID, contact string) error
}

// MessageStore is the append-only message log.
type MessageStore interface {
	SaveMessage(ctx context.Context, m *models.Message) (bool, error)
	RecentMessages(ctx context.Context, accountID, contact string, beforeID int64, limit int) ([]models.Message, error)
}

// AutomationStore reads the rules and flows authored in the dashboard.
type AutomationStore interface {
	ListRules(ctx context.Context, accountID string) ([]models.Rule, error)
	GetFlow(ctx context.Context, id string) (*models.Flow, error)
}

// Store is everything the inbound pipeline reads and writes.
type Store interface {
	AccountStore
	ConversationStore
	MessageStore
	AutomationStore
}

// Publisher receives every persisted message for live inbox delivery.
type Publisher interface {
	Publish(m models.Message)
}

type noopPublisher struct{}

func (noopPublisher) Publish(models.Message) {}
