package models

import "time"

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeImage       MessageType = "image"
	MessageTypeAudio       MessageType = "audio"
	MessageTypeVideo       MessageType = "video"
	MessageTypeDocument    MessageType = "document"
	MessageTypeInteractive MessageType = "interactive"
	MessageTypeButton      MessageType = "button"
)

// IsMedia reports whether the type carries a media object fetched through the media API.
func (t MessageType) IsMedia() bool {
	switch t {
	case MessageTypeImage, MessageTypeAudio, MessageTypeVideo, MessageTypeDocument:
		return true
	}
	return false
}

type MessageStatus string

const (
	MessageStatusReceived MessageStatus = "received"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusFailed   MessageStatus = "failed"
)

// Message is an immutable log record of one inbound or outbound message.
type Message struct {
	ID                int64         `json:"id"`
	AccountID         string        `json:"accountId"`
	Direction         Direction     `json:"direction"`
	PhoneNumber       string        `json:"phoneNumber"`
	Body              string        `json:"body"`
	Type              MessageType   `json:"type"`
	MediaURL          string        `json:"mediaUrl,omitempty"`
	MediaCaption      string        `json:"mediaCaption,omitempty"`
	WhatsAppMessageID string        `json:"whatsappMessageId,omitempty"`
	Status            MessageStatus `json:"status"`
	CreatedAt         time.Time     `json:"createdAt"`
}
