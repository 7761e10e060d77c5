package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"whatsflow/pkg/constants"
	"whatsflow/pkg/whatsapp/types"
)

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("whatsapp api error %d (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("whatsapp api error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the platform considered the failure transient.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CloudClient talks to the WhatsApp Cloud API over the Graph endpoint.
type CloudClient struct {
	baseURL    string
	apiVersion string
	client     *http.Client
}

// NewClient creates a Cloud API client. baseURL is the Graph host
// (https://graph.facebook.com), apiVersion e.g. "v18.0".
func NewClient(baseURL, apiVersion string, timeout time.Duration) *CloudClient {
	if timeout <= 0 {
		timeout = constants.DefaultWhatsAppTimeoutMs * time.Millisecond
	}
	return &CloudClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: strings.Trim(apiVersion, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *CloudClient) endpoint(parts ...string) string {
	escaped := make([]string, 0, len(parts)+2)
	escaped = append(escaped, c.baseURL, c.apiVersion)
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *CloudClient) SendText(ctx context.Context, from Sender, to, body string) (*types.SendResponse, error) {
	if body == "" {
		return nil, fmt.Errorf("text body cannot be empty")
	}
	req := newSendRequest(to, types.MessageTypeText)
	req.Text = &types.TextBody{Body: truncateRunes(body, constants.MaxTextBodyLength)}
	return c.send(ctx, from, req)
}

// SendInteractiveButtons sends a reply-button message. Extra buttons beyond the
// platform limit are dropped and titles are shortened to fit.
func (c *CloudClient) SendInteractiveButtons(ctx context.Context, from Sender, to, body string, buttons []types.ReplyButton) (*types.SendResponse, error) {
	if len(buttons) == 0 {
		return nil, fmt.Errorf("interactive message needs at least one button")
	}
	if body == "" {
		return nil, fmt.Errorf("interactive body cannot be empty")
	}
	if len(buttons) > constants.MaxReplyButtons {
		buttons = buttons[:constants.MaxReplyButtons]
	}

	action := types.InteractiveAction{Buttons: make([]types.ActionButton, 0, len(buttons))}
	for _, b := range buttons {
		action.Buttons = append(action.Buttons, types.ActionButton{
			Type: "reply",
			Reply: types.ReplyButton{
				ID:    truncateRunes(b.ID, constants.MaxButtonIDLength),
				Title: truncateRunes(b.Title, constants.MaxButtonTitleLength),
			},
		})
	}

	req := newSendRequest(to, types.MessageTypeInteractive)
	req.Interactive = &types.InteractiveMessage{
		Type:   "button",
		Body:   types.TextBody{Body: truncateRunes(body, constants.MaxInteractiveBodyText)},
		Action: action,
	}
	return c.send(ctx, from, req)
}

// SendMediaLink sends media hosted at link. Audio and stickers ignore caption.
func (c *CloudClient) SendMediaLink(ctx context.Context, from Sender, to, mediaType, link, caption string) (*types.SendResponse, error) {
	if !slices.Contains(constants.MediaTypes, mediaType) {
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}
	if link == "" {
		return nil, fmt.Errorf("media link cannot be empty")
	}

	req := newSendRequest(to, mediaType)
	media := &types.MediaLink{Link: link, Caption: caption}
	switch mediaType {
	case types.MessageTypeImage:
		req.Image = media
	case types.MessageTypeVideo:
		req.Video = media
	case types.MessageTypeDocument:
		req.Document = media
	case types.MessageTypeAudio:
		media.Caption = ""
		req.Audio = media
	case types.MessageTypeSticker:
		media.Caption = ""
		req.Sticker = media
	}
	return c.send(ctx, from, req)
}

// GetMediaURL resolves an inbound media id to a short-lived download URL.
func (c *CloudClient) GetMediaURL(ctx context.Context, accessToken, mediaID string) (string, error) {
	if mediaID == "" {
		return "", fmt.Errorf("media id cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(mediaID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var info types.MediaInfo
	if err := c.do(req, &info); err != nil {
		return "", err
	}
	if info.URL == "" {
		return "", fmt.Errorf("media %s has no url", mediaID)
	}
	return info.URL, nil
}

func newSendRequest(to, msgType string) *types.SendRequest {
	return &types.SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             msgType,
	}
}

func (c *CloudClient) send(ctx context.Context, from Sender, payload *types.SendRequest) (*types.SendResponse, error) {
	if from.PhoneNumberID == "" || from.AccessToken == "" {
		return nil, fmt.Errorf("sender phone number id and access token are required")
	}
	if payload.To == "" {
		return nil, fmt.Errorf("recipient cannot be empty")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(from.PhoneNumberID, "messages"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+from.AccessToken)

	var result types.SendResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *CloudClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var envelope types.ErrorResponse
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
