package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plus prefix", "+1234567890", "+******7890"},
		{"plain digits", "15551234567", "*******4567"},
		{"short", "123", "***"},
		{"just plus", "+", "+"},
		{"exactly four", "+1234", "+****"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPhoneNumber(tt.input))
		})
	}
}

func TestMaskMessageID(t *testing.T) {
	assert.Equal(t, "", MaskMessageID(""))
	assert.Equal(t, "wamid.******5678", MaskMessageID("wamid.ABCDEF5678"))
	assert.Equal(t, "****12345678", MaskMessageID("abcd12345678"))
	assert.Equal(t, "*****", MaskMessageID("short"))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("abc"))
	assert.Equal(t, "EAAG****", MaskSecret("EAAGm0PX4ZCpsBAKZB"))
}

func TestMaskBody(t *testing.T) {
	assert.Equal(t, "hi", MaskBody("hi"))
	assert.Equal(t, "I would like...", MaskBody("I would like to book a table"))
	assert.Equal(t, "ññññññññññññ...", MaskBody("ñññññññññññññññ"))
}

func TestMaskSensitiveFields(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))

	fields := map[string]interface{}{
		"contact":      "15551234567",
		"message_id":   "wamid.ABCDEF5678",
		"access_token": "EAAGm0PX4ZCpsBAKZB",
		"body":         "I would like to book a table",
		"account_id":   "acc-1",
		"attempt":      3,
	}

	masked := MaskSensitiveFields(fields)
	assert.Equal(t, "*******4567", masked["contact"])
	assert.Equal(t, "wamid.******5678", masked["message_id"])
	assert.Equal(t, "EAAG****", masked["access_token"])
	assert.Equal(t, "I would like...", masked["body"])
	assert.Equal(t, "acc-1", masked["account_id"])
	assert.Equal(t, 3, masked["attempt"])
	assert.Equal(t, "15551234567", fields["contact"])
}
