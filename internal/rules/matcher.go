// Package rules selects the auto-reply rule for an inbound message.
package rules

import (
	"strings"

	"whatsflow/internal/models"
)

// Match returns the first rule whose trigger matches text, or nil. Comparison is
// case-insensitive and not trimmed. Rules with an unknown trigger type never match.
func Match(text string, rs []models.Rule) *models.Rule {
	lowered := strings.ToLower(text)
	for i := range rs {
		if matches(lowered, &rs[i]) {
			return &rs[i]
		}
	}
	return nil
}

func matches(lowered string, r *models.Rule) bool {
	trigger := strings.ToLower(r.TriggerValue)
	switch r.TriggerType {
	case models.TriggerExactMatch:
		return lowered == trigger
	case models.TriggerContains:
		return strings.Contains(lowered, trigger)
	case models.TriggerStartsWith:
		return strings.HasPrefix(lowered, trigger)
	default:
		return false
	}
}
