// Package ai talks to chat-completion providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"whatsflow/pkg/constants"
)

// Roles used in chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyResponse = errors.New("provider returned no completion")

// Message is one turn of chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request. Messages end with the
// current user turn.
type Request struct {
	APIKey       string
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
}

// Provider produces a single completion string.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = constants.DefaultAITimeoutMs * time.Millisecond
	}
	return &http.Client{Timeout: timeout}
}
