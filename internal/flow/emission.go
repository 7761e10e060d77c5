package flow

import "whatsflow/internal/models"

// Emission is what entering a node sends to the contact.
type Emission struct {
	Text    string
	Buttons []models.Button
}

// Interactive reports whether the emission needs an interactive button message.
func (e *Emission) Interactive() bool {
	return len(e.Buttons) > 0
}

// Emit returns the outbound content of node, or nil for nodes that send nothing
// on entry (input and incomingMessageNode). Buttons are capped at the platform limit.
func Emit(node *models.Node) *Emission {
	if node == nil {
		return nil
	}
	switch node.Type {
	case models.NodeTypeMessage, models.NodeTypeWelcomeMessage:
		return &Emission{Text: node.Data.Message}
	case models.NodeTypeButtonMessage:
		buttons := node.Data.Buttons
		if len(buttons) > models.MaxButtons {
			buttons = buttons[:models.MaxButtons]
		}
		e := &Emission{Text: node.Data.Message}
		if len(buttons) > 0 {
			e.Buttons = append([]models.Button(nil), buttons...)
		}
		return e
	default:
		return nil
	}
}
