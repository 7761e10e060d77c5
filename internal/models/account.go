package models

import "time"

// AI provider names accepted on an account.
const (
	AIProviderOpenAI = "openai"
	AIProviderGemini = "gemini"
)

// Account is a connected WhatsApp Business phone number owned by one tenant user.
type Account struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	PhoneNumberID      string    `json:"phoneNumberId"` // inbound routing key (metadata.phone_number_id)
	DisplayPhoneNumber string    `json:"displayPhoneNumber"`
	AccessToken        string    `json:"-"`
	AIEnabled          bool      `json:"aiEnabled"`
	AIProvider         string    `json:"aiProvider"`
	AIAPIKey           string    `json:"-"`
	AISystemPrompt     string    `json:"aiSystemPrompt"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Provider returns the configured AI provider, defaulting to OpenAI.
func (a *Account) Provider() string {
	if a.AIProvider == "" {
		return AIProviderOpenAI
	}
	return a.AIProvider
}
