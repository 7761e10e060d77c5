package constants

// Server and storage defaults
const (
	DefaultServerPort            = 8080
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 30
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	DefaultCleanupIntervalHours  = 24
	DefaultRetentionDays         = 90
	DefaultMaxBodyBytes          = 1 << 20
	DefaultRateLimitPerSecond    = 20
	DefaultRateLimitBurst        = 40
)

// Retry defaults
const (
	DefaultRetryBackoffMs         = 1000
	DefaultMaxBackoffMs           = 60000
	DefaultMaxAttempts            = 5
	DefaultDatabaseRetryAttempts  = 3
	DefaultBackoffInitialMs       = 500
	DefaultBackoffMaxSec          = 5
	DefaultConfigReloadDebounceMs = 200
)

// WhatsApp Cloud API defaults
const (
	DefaultWhatsAppAPIBaseURL = "https://graph.facebook.com"
	DefaultWhatsAppAPIVersion = "v18.0"
	DefaultWhatsAppTimeoutMs  = 10000
)

// AI defaults
const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-3.5-turbo"
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel     = "gemini-pro"
	DefaultAIMaxTokens     = 300
	DefaultAIHistoryLimit  = 10
	DefaultAITimeoutMs     = 20000
	DefaultBreakerFailures = 5
	DefaultBreakerResetSec = 30
	DefaultAISystemPrompt  = "You are a helpful customer support assistant for a business on WhatsApp. Keep answers short and friendly."
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
	DefaultMessageIDLength = 8
)
