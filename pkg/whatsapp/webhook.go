package whatsapp

import (
	"fmt"

	"whatsflow/pkg/whatsapp/types"
)

// FirstChange returns entry[0].changes[0].value, the only part of a payload
// the router looks at.
func FirstChange(p *types.WebhookPayload) (*types.ChangeValue, bool) {
	if p == nil || len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return nil, false
	}
	return &p.Entry[0].Changes[0].Value, true
}

// ExtractText reduces an inbound message to the text the rule and flow engine
// sees. Reply buttons and list rows yield their id, which is the payload we
// set when sending. Everything without text becomes "[<type> message]".
func ExtractText(m *types.Message) string {
	switch m.Type {
	case types.MessageTypeText:
		if m.Text != nil {
			return m.Text.Body
		}
	case types.MessageTypeInteractive:
		if m.Interactive != nil {
			switch {
			case m.Interactive.ButtonReply != nil:
				return m.Interactive.ButtonReply.ID
			case m.Interactive.ListReply != nil:
				return m.Interactive.ListReply.ID
			}
		}
	case types.MessageTypeButton:
		if m.Button != nil {
			if m.Button.Payload != "" {
				return m.Button.Payload
			}
			return m.Button.Text
		}
	}
	return Placeholder(m.Type)
}

// Placeholder is the stored body for messages without text.
func Placeholder(msgType string) string {
	if msgType == "" {
		msgType = "unknown"
	}
	return fmt.Sprintf("[%s message]", msgType)
}

// MediaOf returns the media object of an image, audio, video, document or
// sticker message.
func MediaOf(m *types.Message) *types.Media {
	switch m.Type {
	case types.MessageTypeImage:
		return m.Image
	case types.MessageTypeAudio:
		return m.Audio
	case types.MessageTypeVideo:
		return m.Video
	case types.MessageTypeDocument:
		return m.Document
	case types.MessageTypeSticker:
		return m.Sticker
	}
	return nil
}

// ContactName returns the profile name WhatsApp reported for waID.
func ContactName(v *types.ChangeValue, waID string) string {
	for _, c := range v.Contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	if len(v.Contacts) > 0 {
		return v.Contacts[0].Profile.Name
	}
	return ""
}
