package config

import (
	"encoding/json"
	"fmt"
	"os"

	"whatsflow/internal/constants"
	"whatsflow/internal/models"
	"whatsflow/internal/security"
	"whatsflow/internal/validation"
)

var (
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
	ErrMissingVerifyToken = models.ConfigError{Message: "missing WhatsApp webhook verify token"}
)

// Environment variables that override the config file.
const (
	EnvVerifyToken = "WHATSAPP_VERIFY_TOKEN"
	EnvAppSecret   = "WHATSAPP_APP_SECRET"
	EnvAPIBaseURL  = "WHATSAPP_API_URL"
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvDBPath      = "DB_PATH"
	EnvEnvironment = "WHATSFLOW_ENV"
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)
	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}
	if err := validateSecurity(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.WhatsApp.VerifyToken == "" {
		return ErrMissingVerifyToken
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return models.ConfigError{Message: fmt.Sprintf("invalid server port: %d", c.Server.Port)}
	}
	if c.AI.MaxTokens < 0 {
		return models.ConfigError{Message: "ai.max_tokens cannot be negative"}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return models.ConfigError{Message: fmt.Sprintf("tracing.sample_rate must be between 0 and 1, got %v", c.Tracing.SampleRate)}
	}
	if err := validation.ValidateRetentionDays(c.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if err := validation.ValidateTimeoutMs(c.WhatsApp.TimeoutMs, "whatsapp.timeout_ms"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if err := validation.ValidateTimeoutMs(c.AI.TimeoutMs, "ai.timeout_ms"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}
	if c.Server.CleanupIntervalHours <= 0 {
		c.Server.CleanupIntervalHours = constants.DefaultCleanupIntervalHours
	}
	if c.Server.RateLimitPerSecond <= 0 {
		c.Server.RateLimitPerSecond = constants.DefaultRateLimitPerSecond
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = constants.DefaultRateLimitBurst
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}

	if c.WhatsApp.APIBaseURL == "" {
		c.WhatsApp.APIBaseURL = constants.DefaultWhatsAppAPIBaseURL
	}
	if c.WhatsApp.APIVersion == "" {
		c.WhatsApp.APIVersion = constants.DefaultWhatsAppAPIVersion
	}
	if c.WhatsApp.TimeoutMs <= 0 {
		c.WhatsApp.TimeoutMs = constants.DefaultWhatsAppTimeoutMs
	}

	if c.AI.OpenAIBaseURL == "" {
		c.AI.OpenAIBaseURL = constants.DefaultOpenAIBaseURL
	}
	if c.AI.OpenAIModel == "" {
		c.AI.OpenAIModel = constants.DefaultOpenAIModel
	}
	if c.AI.GeminiBaseURL == "" {
		c.AI.GeminiBaseURL = constants.DefaultGeminiBaseURL
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = constants.DefaultGeminiModel
	}
	if c.AI.SystemPrompt == "" {
		c.AI.SystemPrompt = constants.DefaultAISystemPrompt
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = constants.DefaultAIMaxTokens
	}
	if c.AI.HistoryLimit <= 0 {
		c.AI.HistoryLimit = constants.DefaultAIHistoryLimit
	}
	if c.AI.TimeoutMs <= 0 {
		c.AI.TimeoutMs = constants.DefaultAITimeoutMs
	}
	if c.AI.BreakerFailures <= 0 {
		c.AI.BreakerFailures = constants.DefaultBreakerFailures
	}
	if c.AI.BreakerResetSec <= 0 {
		c.AI.BreakerResetSec = constants.DefaultBreakerResetSec
	}

	if c.Replies.Default == "" {
		c.Replies.Default = constants.DefaultReply
	}
	if c.Replies.AIApology == "" {
		c.Replies.AIApology = constants.AIApologyReply
	}
	if c.Replies.ButtonFallback == "" {
		c.Replies.ButtonFallback = constants.ButtonFallbackBody
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "whatsflow"
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = constants.DefaultRetentionDays
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv(EnvAPIBaseURL); url != "" {
		c.WhatsApp.APIBaseURL = url
	}

	// Secrets belong in the environment, not in config.json.
	if token := os.Getenv(EnvVerifyToken); token != "" {
		c.WhatsApp.VerifyToken = token
	}
	if secret := os.Getenv(EnvAppSecret); secret != "" {
		c.WhatsApp.AppSecret = secret
	}
	if key := os.Getenv(EnvOpenAIKey); key != "" {
		c.AI.OpenAIAPIKey = key
	}
	if key := os.Getenv(EnvGeminiKey); key != "" {
		c.AI.GeminiAPIKey = key
	}

	if path := os.Getenv(EnvDBPath); path != "" {
		c.Database.Path = path
	}
	if env := os.Getenv(EnvEnvironment); env != "" {
		c.Tracing.Environment = env
	}
}

// IsProduction reports whether WHATSFLOW_ENV is set to production.
func IsProduction() bool {
	return os.Getenv(EnvEnvironment) == "production"
}

// validateSecurity performs security-specific validation
func validateSecurity(c *models.Config) error {
	if IsProduction() {
		if c.WhatsApp.AppSecret == "" {
			return models.ConfigError{Message: "WhatsApp app secret is required in production (set WHATSAPP_APP_SECRET environment variable)"}
		}
		if len(c.WhatsApp.VerifyToken) < 16 {
			return models.ConfigError{Message: "WhatsApp verify token must be at least 16 characters long in production"}
		}
		if c.LogLevel == "debug" {
			return models.ConfigError{Message: "debug logging should not be used in production (security risk)"}
		}
	} else if c.WhatsApp.AppSecret == "" {
		fmt.Fprintf(os.Stderr, "WARNING: WhatsApp app secret not set. Webhook signatures will not be verified. Set %s.\n", EnvAppSecret)
	}

	return nil
}
