package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"whatsflow/internal/constants"
	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/metrics"
	"whatsflow/internal/models"
	"whatsflow/internal/tracing"
	"whatsflow/pkg/ai"
	"whatsflow/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ErrAINotConfigured matches any error reporting a provider without an API key.
var ErrAINotConfigured = apperrors.New(apperrors.ErrCodeAINotConfigured, "AI provider not configured")

// ErrUnknownProvider is returned for provider names that are not registered.
var ErrUnknownProvider = errors.New("unknown AI provider")

// AIRequest is one completion request. Account and Contact are optional;
// without both no history is loaded.
type AIRequest struct {
	Account           *models.Account
	Contact           string
	Text              string
	BeforeMessageID   int64
	SystemPrompt      string
	Provider          string
	PreferredLanguage string
}

type registeredProvider struct {
	provider ai.Provider
	breaker  *circuitbreaker.CircuitBreaker
}

// Responder builds chat context from the message log and asks a provider for
// a reply. It is shared by rule-AI, the account fallback and the chat API.
type Responder struct {
	history   MessageStore
	providers map[string]*registeredProvider
	config    atomic.Pointer[models.AIConfig]
	logger    *logrus.Logger
}

// NewResponder registers providers by name, each behind its own breaker.
func NewResponder(history MessageStore, cfg models.AIConfig, logger *logrus.Logger, providers ...ai.Provider) *Responder {
	r := &Responder{
		history:   history,
		providers: make(map[string]*registeredProvider, len(providers)),
		logger:    logger,
	}
	r.UpdateConfig(cfg)

	failures := cfg.BreakerFailures
	if failures <= 0 {
		failures = constants.DefaultBreakerFailures
	}
	reset := time.Duration(cfg.BreakerResetSec) * time.Second
	if reset <= 0 {
		reset = constants.DefaultBreakerResetSec * time.Second
	}

	for _, p := range providers {
		r.providers[p.Name()] = &registeredProvider{
			provider: p,
			breaker:  circuitbreaker.New("ai-"+p.Name(), uint32(failures), reset, circuitbreaker.WithLogger(logger)),
		}
	}
	return r
}

// UpdateConfig swaps keys, prompt and limits; used by config hot reload.
func (r *Responder) UpdateConfig(cfg models.AIConfig) {
	c := cfg
	r.config.Store(&c)
}

// Configured reports whether a reply for account can be attempted at all.
func (r *Responder) Configured(account *models.Account) bool {
	name := account.Provider()
	if _, ok := r.providers[name]; !ok {
		return false
	}
	return r.apiKey(name, account) != ""
}

// Reply returns the provider's completion for req.Text.
func (r *Responder) Reply(ctx context.Context, req AIRequest) (string, error) {
	cfg := r.config.Load()

	name := req.Provider
	if name == "" && req.Account != nil {
		name = req.Account.Provider()
	}
	if name == "" {
		name = models.AIProviderOpenAI
	}

	entry, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	key := r.apiKey(name, req.Account)
	if key == "" {
		return "", apperrors.NewAINotConfiguredError(name)
	}

	ctx, span := tracing.StartSpan(ctx, "ai.complete", attribute.String("provider", name))
	defer span.End()

	history, err := r.loadHistory(ctx, req, cfg.HistoryLimit)
	if err != nil {
		tracing.RecordError(ctx, err)
		return "", err
	}

	completionReq := ai.Request{
		APIKey:       key,
		SystemPrompt: r.systemPrompt(cfg, req),
		Messages:     append(history, ai.Message{Role: ai.RoleUser, Content: req.Text}),
		MaxTokens:    cfg.MaxTokens,
	}

	callCtx := ctx
	if cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	var reply string
	err = entry.breaker.Execute(callCtx, func(ctx context.Context) error {
		var callErr error
		reply, callErr = entry.provider.Complete(ctx, completionReq)
		return callErr
	})
	metrics.RecordTimer(metrics.AICompletionDuration, time.Since(start), map[string]string{"provider": name}, "AI completion latency")

	status := "ok"
	if err != nil {
		status = "error"
		if circuitbreaker.IsCircuitBreakerError(err) {
			status = "rejected"
		}
	}
	metrics.IncrementCounter(metrics.AICompletionsTotal, map[string]string{"provider": name, "status": status}, "AI completions by result")

	if err != nil {
		tracing.RecordError(ctx, err)
		return "", apperrors.NewAIError(name, err)
	}
	return strings.TrimSpace(reply), nil
}

// apiKey prefers the account's own key when it is for the requested provider.
func (r *Responder) apiKey(provider string, account *models.Account) string {
	if account != nil && account.AIAPIKey != "" && account.Provider() == provider {
		return account.AIAPIKey
	}
	cfg := r.config.Load()
	switch provider {
	case models.AIProviderOpenAI:
		return cfg.OpenAIAPIKey
	case models.AIProviderGemini:
		return cfg.GeminiAPIKey
	}
	return ""
}

func (r *Responder) systemPrompt(cfg *models.AIConfig, req AIRequest) string {
	prompt := req.SystemPrompt
	if prompt == "" && req.Account != nil {
		prompt = req.Account.AISystemPrompt
	}
	if prompt == "" {
		prompt = cfg.SystemPrompt
	}
	if lang := strings.TrimSpace(req.PreferredLanguage); lang != "" {
		hint := fmt.Sprintf(constants.PreferredLanguageHint, lang)
		if prompt == "" {
			return hint
		}
		return prompt + "\n\n" + hint
	}
	return prompt
}

// loadHistory maps the stored conversation to chat turns, oldest first.
// Messages at or after BeforeMessageID are excluded so the current inbound
// is not sent twice.
func (r *Responder) loadHistory(ctx context.Context, req AIRequest, limit int) ([]ai.Message, error) {
	if req.Account == nil || req.Contact == "" || limit <= 0 {
		return nil, nil
	}

	msgs, err := r.history.RecentMessages(ctx, req.Account.ID, req.Contact, req.BeforeMessageID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load chat history", err)
	}

	out := make([]ai.Message, 0, len(msgs)+1)
	for _, m := range msgs {
		if m.Body == "" {
			continue
		}
		role := ai.RoleUser
		if m.Direction == models.DirectionOutgoing {
			role = ai.RoleAssistant
		}
		out = append(out, ai.Message{Role: role, Content: m.Body})
	}
	return out, nil
}
