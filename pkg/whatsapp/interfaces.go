package whatsapp

import (
	"context"

	"whatsflow/pkg/whatsapp/types"
)

// Sender identifies the business number a message is sent from and the
// credential used to send it.
type Sender struct {
	PhoneNumberID string
	AccessToken   string
}

// Client is the outbound side of the Cloud API.
type Client interface {
	SendText(ctx context.Context, from Sender, to, body string) (*types.SendResponse, error)
	SendInteractiveButtons(ctx context.Context, from Sender, to, body string, buttons []types.ReplyButton) (*types.SendResponse, error)
	SendMediaLink(ctx context.Context, from Sender, to, mediaType, link, caption string) (*types.SendResponse, error)
	GetMediaURL(ctx context.Context, accessToken, mediaID string) (string, error)
}
