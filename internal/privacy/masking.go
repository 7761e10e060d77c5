package privacy

import (
	"strings"

	"whatsflow/internal/constants"
)

const bodyPreviewLength = 12

// MaskPhoneNumber masks a phone number showing only the last digits.
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskLength
	if strings.HasPrefix(phone, "+") {
		return "+" + maskString(phone[1:], keep)
	}
	return maskString(phone, keep)
}

// MaskMessageID masks a WhatsApp message id, keeping the "wamid." prefix.
// Example: "wamid.HBgLMTIzNDU2Nzg5MA" -> "wamid.**************g5MA"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	if rest, ok := strings.CutPrefix(messageID, "wamid."); ok {
		return "wamid." + maskString(rest, constants.DefaultPhoneMaskLength)
	}
	return maskString(messageID, constants.DefaultMessageIDLength)
}

// MaskSecret hides a token entirely apart from its length class.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// MaskBody shortens a message body for logs.
func MaskBody(body string) string {
	runes := []rune(body)
	if len(runes) <= bodyPreviewLength {
		return body
	}
	return string(runes[:bodyPreviewLength]) + "..."
}

func maskString(s string, keepLast int) string {
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "phone_number", "from", "to", "contact":
			masked[k] = MaskPhoneNumber(s)
		case "message_id", "whatsapp_message_id", "wamid":
			masked[k] = MaskMessageID(s)
		case "access_token", "api_key", "token":
			masked[k] = MaskSecret(s)
		case "body", "text":
			masked[k] = MaskBody(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
