package models

// Config holds the application configuration
type Config struct {
	Server        ServerConfig    `json:"server"`
	WhatsApp      WhatsAppConfig  `json:"whatsapp"`
	AI            AIConfig        `json:"ai"`
	Database      DatabaseConfig  `json:"database"`
	Retry         RetryConfig     `json:"retry"`
	Tracing       TracingConfig   `json:"tracing"`
	Replies       RepliesConfig   `json:"replies"`
	LogLevel      string          `json:"log_level"`
	RetentionDays int             `json:"retentionDays"`
	Features      map[string]bool `json:"features,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port                 int     `json:"port"`
	ReadTimeoutSec       int     `json:"readTimeoutSec"`
	WriteTimeoutSec      int     `json:"writeTimeoutSec"`
	IdleTimeoutSec       int     `json:"idleTimeoutSec"`
	CleanupIntervalHours int     `json:"cleanupIntervalHours"`
	RateLimitPerSecond   float64 `json:"rateLimitPerSecond"`
	RateLimitBurst       int     `json:"rateLimitBurst"`
	MaxBodyBytes         int64   `json:"maxBodyBytes"`
	TrustProxy           bool    `json:"trustProxy"`
}

// WhatsAppConfig holds WhatsApp Cloud API settings
type WhatsAppConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	APIVersion  string `json:"api_version"`
	TimeoutMs   int    `json:"timeout_ms"`
	VerifyToken string `json:"verify_token"`
	AppSecret   string `json:"app_secret"`
}

// AIConfig holds chat-completion provider settings
type AIConfig struct {
	OpenAIAPIKey    string `json:"openai_api_key"`
	OpenAIModel     string `json:"openai_model"`
	OpenAIBaseURL   string `json:"openai_base_url"`
	GeminiAPIKey    string `json:"gemini_api_key"`
	GeminiModel     string `json:"gemini_model"`
	GeminiBaseURL   string `json:"gemini_base_url"`
	SystemPrompt    string `json:"system_prompt"`
	MaxTokens       int    `json:"max_tokens"`
	HistoryLimit    int    `json:"history_limit"`
	TimeoutMs       int    `json:"timeout_ms"`
	BreakerFailures int    `json:"breaker_failures"`
	BreakerResetSec int    `json:"breaker_reset_sec"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

// RepliesConfig holds the canned outbound messages. Empty fields fall back to defaults.
type RepliesConfig struct {
	Default        string `json:"default"`
	AIApology      string `json:"ai_apology"`
	ButtonFallback string `json:"button_fallback"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
