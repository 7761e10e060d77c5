package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func history() []Message {
	return []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello, how can I help?"},
		{Role: RoleUser, Content: "opening hours?"},
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"We open at 9."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(server.URL+"/v1/", "gpt-test", time.Second)
	assert.Equal(t, "openai", p.Name())

	out, err := p.Complete(context.Background(), Request{
		APIKey:       "sk-test",
		SystemPrompt: "Be brief.",
		Messages:     history(),
		MaxTokens:    300,
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 9.", out)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, Message{Role: "system", Content: "Be brief."}, got.Messages[0])
	assert.Equal(t, "opening hours?", got.Messages[3].Content)
}

func TestOpenAIProvider_NoSystemPrompt(t *testing.T) {
	var got openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	_, err := NewOpenAIProvider(server.URL, "", time.Second).Complete(context.Background(), Request{Messages: history()[:1]})
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		checkFn func(t *testing.T, err error)
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, func(t *testing.T, err error) {
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			assert.Contains(t, apiErr.Body, "bad key")
		}},
		{"no choices", http.StatusOK, `{"choices":[]}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrEmptyResponse)
		}},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"  "}}]}`, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrEmptyResponse)
		}},
		{"malformed", http.StatusOK, `not json`, func(t *testing.T, err error) {
			assert.Error(t, err)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewOpenAIProvider(server.URL, "m", time.Second).Complete(context.Background(), Request{Messages: history()})
			tt.checkFn(t, err)
		})
	}
}

func TestGeminiProvider_Complete(t *testing.T) {
	var got geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "gm-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"We open "},{"text":"at 9."}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(server.URL+"/v1beta", "gemini-test", time.Second)
	assert.Equal(t, "gemini", p.Name())

	out, err := p.Complete(context.Background(), Request{
		APIKey:       "gm-key",
		SystemPrompt: "Be brief.",
		Messages:     history(),
		MaxTokens:    300,
	})
	require.NoError(t, err)
	assert.Equal(t, "We open at 9.", out)

	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "Be brief.", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 3)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "model", got.Contents[1].Role)
	assert.Equal(t, 300, got.GenerationConfig.MaxOutputTokens)
}

func TestGeminiProvider_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") == "" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"message":"missing key"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	p := NewGeminiProvider(server.URL, "m", time.Second)

	_, err := p.Complete(context.Background(), Request{Messages: history()})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "gemini", apiErr.Provider)

	_, err = p.Complete(context.Background(), Request{APIKey: "k", Messages: history()})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProviders_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewOpenAIProvider(server.URL, "m", time.Second).Complete(ctx, Request{Messages: history()})
	assert.Error(t, err)
}
