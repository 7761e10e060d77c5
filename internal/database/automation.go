package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"whatsflow/internal/models"

	"github.com/google/uuid"
)

// SaveRule inserts or replaces a rule by id, assigning an id when empty.
func (d *Database) SaveRule(ctx context.Context, r *models.Rule) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = d.now()
	}

	responses, err := json.Marshal(nonNil(r.Responses))
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}
	buttons, err := json.Marshal(nonNilButtons(r.Buttons))
	if err != nil {
		return fmt.Errorf("failed to encode buttons: %w", err)
	}

	var flowID sql.NullString
	if r.HasFlow() {
		flowID = sql.NullString{String: *r.FlowID, Valid: true}
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO rules (id, account_id, trigger_type, trigger_value, responses, buttons, flow_id, use_ai, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				trigger_type = excluded.trigger_type,
				trigger_value = excluded.trigger_value,
				responses = excluded.responses,
				buttons = excluded.buttons,
				flow_id = excluded.flow_id,
				use_ai = excluded.use_ai`,
			r.ID, r.AccountID, r.TriggerType, r.TriggerValue, string(responses), string(buttons), flowID, r.UseAI, r.CreatedAt)
		return err
	}, "save rule")
}

// ListRules returns the account's rules ordered by creation time, ties broken by id.
func (d *Database) ListRules(ctx context.Context, accountID string) ([]models.Rule, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, account_id, trigger_type, trigger_value, responses, buttons, flow_id, use_ai, created_at
		FROM rules
		WHERE account_id = ?
		ORDER BY created_at, id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		var r models.Rule
		var responses, buttons string
		var flowID sql.NullString
		if err := rows.Scan(&r.ID, &r.AccountID, &r.TriggerType, &r.TriggerValue, &responses, &buttons, &flowID, &r.UseAI, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal([]byte(responses), &r.Responses); err != nil {
			return nil, fmt.Errorf("rule %s: invalid responses: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(buttons), &r.Buttons); err != nil {
			return nil, fmt.Errorf("rule %s: invalid buttons: %w", r.ID, err)
		}
		if flowID.Valid {
			r.FlowID = &flowID.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveFlow inserts or replaces a flow by id, assigning an id when empty.
func (d *Database) SaveFlow(ctx context.Context, f *models.Flow) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := d.now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	nodes, err := json.Marshal(f.Nodes)
	if err != nil {
		return fmt.Errorf("failed to encode nodes: %w", err)
	}
	edges, err := json.Marshal(f.Edges)
	if err != nil {
		return fmt.Errorf("failed to encode edges: %w", err)
	}

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, `
			INSERT INTO flows (id, user_id, name, nodes, edges, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				nodes = excluded.nodes,
				edges = excluded.edges,
				updated_at = excluded.updated_at`,
			f.ID, f.UserID, f.Name, string(nodes), string(edges), f.CreatedAt, f.UpdatedAt)
		return err
	}, "save flow")
}

// GetFlow returns the flow with the given id, or nil.
func (d *Database) GetFlow(ctx context.Context, id string) (*models.Flow, error) {
	var f models.Flow
	var nodes, edges string
	err := d.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, nodes, edges, created_at, updated_at
		FROM flows WHERE id = ?`, id).
		Scan(&f.ID, &f.UserID, &f.Name, &nodes, &edges, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if err := json.Unmarshal([]byte(nodes), &f.Nodes); err != nil {
		return nil, fmt.Errorf("flow %s: invalid nodes: %w", id, err)
	}
	if err := json.Unmarshal([]byte(edges), &f.Edges); err != nil {
		return nil, fmt.Errorf("flow %s: invalid edges: %w", id, err)
	}
	return &f, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilButtons(b []models.Button) []models.Button {
	if b == nil {
		return []models.Button{}
	}
	return b
}
