package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"whatsflow/internal/models"

	"github.com/google/uuid"
)

const accountColumns = `id, user_id, phone_number_id, display_phone_number, access_token,
	ai_enabled, ai_provider, ai_api_key, ai_system_prompt, created_at, updated_at`

// CreateAccount inserts a new account, assigning an id when empty. Credentials
// are encrypted when encryption is enabled.
func (d *Database) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.PhoneNumberID == "" {
		return fmt.Errorf("account phone number id cannot be empty")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := d.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	token, err := d.encryptor.Encrypt(a.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	aiKey, err := d.encryptor.Encrypt(a.AIAPIKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt AI API key: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.PhoneNumberID, a.DisplayPhoneNumber, token,
			a.AIEnabled, a.Provider(), aiKey, a.AISystemPrompt, a.CreatedAt, a.UpdatedAt)
		return err
	}, "create account")
}

// GetAccount returns the account with the given id, or nil if none exists.
func (d *Database) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return d.scanAccount(row)
}

// GetAccountByPhoneNumberID resolves the account an inbound webhook is addressed to.
func (d *Database) GetAccountByPhoneNumberID(ctx context.Context, phoneNumberID string) (*models.Account, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE phone_number_id = ?`, phoneNumberID)
	return d.scanAccount(row)
}

// RotateAccessToken replaces the stored Cloud API credential.
func (d *Database) RotateAccessToken(ctx context.Context, accountID, token string) error {
	encrypted, err := d.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		res, err := d.db.ExecContext(ctx,
			`UPDATE accounts SET access_token = ?, updated_at = ? WHERE id = ?`,
			encrypted, d.now(), accountID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("account %s not found", accountID)
		}
		return nil
	}, "rotate access token")
}

func (d *Database) scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var token, aiKey string
	err := row.Scan(&a.ID, &a.UserID, &a.PhoneNumberID, &a.DisplayPhoneNumber, &token,
		&a.AIEnabled, &a.AIProvider, &aiKey, &a.AISystemPrompt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if a.AccessToken, err = d.encryptor.Decrypt(token); err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if a.AIAPIKey, err = d.encryptor.Decrypt(aiKey); err != nil {
		return nil, fmt.Errorf("failed to decrypt AI API key: %w", err)
	}
	return &a, nil
}
