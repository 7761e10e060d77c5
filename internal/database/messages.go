package database

import (
	"context"
	"fmt"

	"whatsflow/internal/models"
)

const messageColumns = `id, account_id, direction, phone_number, body, message_type,
	media_url, media_caption, whatsapp_message_id, status, created_at`

// SaveMessage appends m to the log and sets m.ID. It returns false without
// error when a message with the same WhatsApp id is already stored for the
// account, which is how redelivered webhooks are detected.
func (d *Database) SaveMessage(ctx context.Context, m *models.Message) (bool, error) {
	if m.AccountID == "" || m.PhoneNumber == "" {
		return false, fmt.Errorf("message requires account and phone number")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now()
	}
	if m.Type == "" {
		m.Type = models.MessageTypeText
	}

	var inserted bool
	err := retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx, `
			INSERT INTO messages (account_id, direction, phone_number, body, message_type,
				media_url, media_caption, whatsapp_message_id, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			m.AccountID, m.Direction, m.PhoneNumber, m.Body, m.Type,
			m.MediaURL, m.MediaCaption, m.WhatsAppMessageID, m.Status, m.CreatedAt)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			inserted = false
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		m.ID = id
		inserted = true
		return nil
	}, "save message")
	return inserted, err
}

// RecentMessages returns up to limit messages exchanged with contact whose id
// is below beforeID (no bound when beforeID <= 0), oldest first.
func (d *Database) RecentMessages(ctx context.Context, accountID, contact string, beforeID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE account_id = ? AND phone_number = ? AND (? <= 0 OR id < ?)
		ORDER BY id DESC
		LIMIT ?`,
		accountID, contact, beforeID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.AccountID, &m.Direction, &m.PhoneNumber, &m.Body, &m.Type,
			&m.MediaURL, &m.MediaCaption, &m.WhatsAppMessageID, &m.Status, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
