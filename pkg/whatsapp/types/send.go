package types

// SendRequest is the body of POST /{phone-number-id}/messages.
type SendRequest struct {
	MessagingProduct string              `json:"messaging_product"`
	RecipientType    string              `json:"recipient_type"`
	To               string              `json:"to"`
	Type             string              `json:"type"`
	Text             *TextBody           `json:"text,omitempty"`
	Interactive      *InteractiveMessage `json:"interactive,omitempty"`
	Image            *MediaLink          `json:"image,omitempty"`
	Audio            *MediaLink          `json:"audio,omitempty"`
	Video            *MediaLink          `json:"video,omitempty"`
	Document         *MediaLink          `json:"document,omitempty"`
	Sticker          *MediaLink          `json:"sticker,omitempty"`
}

type TextBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type InteractiveMessage struct {
	Type   string            `json:"type"`
	Body   TextBody          `json:"body"`
	Action InteractiveAction `json:"action"`
}

type InteractiveAction struct {
	Buttons []ActionButton `json:"buttons"`
}

type ActionButton struct {
	Type  string      `json:"type"`
	Reply ReplyButton `json:"reply"`
}

// ReplyButton is one quick-reply button. ID comes back as button_reply.id.
type ReplyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type MediaLink struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// SendResponse is the success body of a send call.
type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// MessageID returns the wamid of the first sent message, if any.
func (r *SendResponse) MessageID() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}

// MediaInfo is returned by GET /{media-id}.
type MediaInfo struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// ErrorResponse is the Graph API error envelope.
type ErrorResponse struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode,omitempty"`
		FBTraceID string `json:"fbtrace_id,omitempty"`
	} `json:"error"`
}
