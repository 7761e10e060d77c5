package constants

// Default timeout values used by client packages
const (
	DefaultHTTPTimeoutSec    = 30
	DefaultWhatsAppTimeoutMs = 10000
	DefaultAITimeoutMs       = 20000
)

// Cloud API message limits
const (
	MaxReplyButtons        = 3
	MaxButtonTitleLength   = 20
	MaxButtonIDLength      = 256
	MaxInteractiveBodyText = 1024
	MaxTextBodyLength      = 4096
	MaxMediaCaptionLength  = 1024
	MaxErrorBodyBytes      = 4096
)

// Phone number bounds (E.164 digits, no plus sign)
const (
	MinPhoneNumberDigits = 7
	MaxPhoneNumberDigits = 15
)

// MediaTypes lists the media kinds accepted by the send-by-link endpoint.
var MediaTypes = []string{"image", "audio", "video", "document", "sticker"}
