package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"whatsflow/internal/models"
)

// ConversationUpdate is the denormalized inbox cache written on every message.
type ConversationUpdate struct {
	AccountID     string
	ContactNumber string
	ContactName   string
	LastMessage   string
	LastMessageAt time.Time
}

// GetConversation returns the conversation for (accountID, contact), or nil.
func (d *Database) GetConversation(ctx context.Context, accountID, contact string) (*models.Conversation, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, account_id, contact_number, contact_name, profile_picture_url,
		       last_message, last_message_at, current_flow_id, current_node_id,
		       created_at, updated_at
		FROM conversations
		WHERE account_id = ? AND contact_number = ?`, accountID, contact)

	var c models.Conversation
	var flowID, nodeID sql.NullString
	err := row.Scan(&c.ID, &c.AccountID, &c.ContactNumber, &c.ContactName, &c.ProfilePictureURL,
		&c.LastMessage, &c.LastMessageAt, &flowID, &nodeID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if flowID.Valid && nodeID.Valid {
		c.CurrentFlowID = &flowID.String
		c.CurrentNodeID = &nodeID.String
	}
	return &c, nil
}

// TouchConversation upserts the inbox cache. An empty ContactName keeps the
// stored one. Flow state is never touched.
func (d *Database) TouchConversation(ctx context.Context, u ConversationUpdate) error {
	at := u.LastMessageAt
	if at.IsZero() {
		at = d.now()
	}
	now := d.now()

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO conversations (account_id, contact_number, contact_name, last_message, last_message_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (account_id, contact_number) DO UPDATE SET
				last_message = excluded.last_message,
				last_message_at = excluded.last_message_at,
				contact_name = CASE WHEN excluded.contact_name <> '' THEN excluded.contact_name ELSE conversations.contact_name END,
				updated_at = excluded.updated_at`,
			u.AccountID, u.ContactNumber, u.ContactName, u.LastMessage, at, now, now)
		return err
	}, "touch conversation")
}

// SetFlowState places the conversation at (flowID, nodeID), creating the row if needed.
func (d *Database) SetFlowState(ctx context.Context, accountID, contact, flowID, nodeID string) error {
	if flowID == "" || nodeID == "" {
		return fmt.Errorf("flow state requires both flow and node id")
	}
	now := d.now()

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO conversations (account_id, contact_number, last_message_at, current_flow_id, current_node_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (account_id, contact_number) DO UPDATE SET
				current_flow_id = excluded.current_flow_id,
				current_node_id = excluded.current_node_id,
				updated_at = excluded.updated_at`,
			accountID, contact, now, flowID, nodeID, now, now)
		return err
	}, "set flow state")
}

// AdvanceFlowState moves the conversation from expectedNodeID to nextNodeID
// only if it is still parked there. It reports whether the swap happened.
func (d *Database) AdvanceFlowState(ctx context.Context, accountID, contact, flowID, expectedNodeID, nextNodeID string) (bool, error) {
	var swapped bool
	err := retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, `
			UPDATE conversations
			SET current_node_id = ?, updated_at = ?
			WHERE account_id = ? AND contact_number = ?
			  AND current_flow_id = ? AND current_node_id = ?`,
			nextNodeID, d.now(), accountID, contact, flowID, expectedNodeID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		swapped = n == 1
		return nil
	}, "advance flow state")
	return swapped, err
}

// ClearFlowState returns the conversation to idle. Missing rows are not an error.
func (d *Database) ClearFlowState(ctx context.Context, accountID, contact string) error {
	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			UPDATE conversations
			SET current_flow_id = NULL, current_node_id = NULL, updated_at = ?
			WHERE account_id = ? AND contact_number = ?`,
			d.now(), accountID, contact)
		return err
	}, "clear flow state")
}
