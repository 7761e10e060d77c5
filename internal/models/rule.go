package models

import (
	"fmt"
	"strings"
	"time"
)

type TriggerType string

const (
	TriggerExactMatch TriggerType = "EXACT_MATCH"
	TriggerContains   TriggerType = "CONTAINS"
	TriggerStartsWith TriggerType = "STARTS_WITH"
)

// MaxButtons is the WhatsApp limit on reply buttons in one interactive message.
const MaxButtons = 3

// Button is a quick-reply button. Payload is what comes back in a button_reply.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Rule maps a trigger on inbound text to exactly one response mode: static
// responses (plus optional buttons), a flow, or an AI reply.
type Rule struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"accountId"`
	TriggerType  TriggerType `json:"triggerType"`
	TriggerValue string      `json:"triggerValue"`
	Responses    []string    `json:"responses,omitempty"`
	Buttons      []Button    `json:"buttons,omitempty"`
	FlowID       *string     `json:"flowId,omitempty"`
	UseAI        bool        `json:"useAi"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// HasFlow reports whether the rule starts a flow.
func (r *Rule) HasFlow() bool {
	return r.FlowID != nil && *r.FlowID != ""
}

// Validate checks the trigger and that exactly one response mode is configured.
func (r *Rule) Validate() error {
	switch r.TriggerType {
	case TriggerExactMatch, TriggerContains, TriggerStartsWith:
	default:
		return fmt.Errorf("unknown trigger type %q", r.TriggerType)
	}
	if strings.TrimSpace(r.TriggerValue) == "" {
		return fmt.Errorf("trigger value cannot be empty")
	}

	modes := 0
	if len(r.Responses) > 0 || len(r.Buttons) > 0 {
		modes++
	}
	if r.HasFlow() {
		modes++
	}
	if r.UseAI {
		modes++
	}
	if modes != 1 {
		return fmt.Errorf("rule must have exactly one response mode, got %d", modes)
	}

	if len(r.Buttons) > 0 && len(r.Responses) == 0 {
		return fmt.Errorf("buttons require at least one text response")
	}
	if len(r.Buttons) > MaxButtons {
		return fmt.Errorf("rule has %d buttons (max %d)", len(r.Buttons), MaxButtons)
	}
	return nil
}
