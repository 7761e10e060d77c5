package service

// Standard field names for structured logs. Use these exact names so
// dashboards can join inbound, dispatch and outbound entries.
const (
	// Core identifiers
	LogFieldAccountID = "account_id"
	LogFieldContact   = "contact"
	LogFieldMessageID = "message_id"
	LogFieldFlowID    = "flow_id"
	LogFieldNodeID    = "node_id"
	LogFieldRuleID    = "rule_id"
	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	// Service and operation fields
	LogFieldService   = "service"
	LogFieldOperation = "operation"
	LogFieldComponent = "component"
	LogFieldStage     = "stage"
	LogFieldOutcome   = "outcome"
	LogFieldProvider  = "provider"

	// Message fields
	LogFieldMessageType = "message_type"
	LogFieldDirection   = "direction"

	// HTTP fields
	LogFieldMethod     = "method"
	LogFieldURL        = "url"
	LogFieldRoute      = "route"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldDuration   = "duration_ms"
	LogFieldSize       = "size_bytes"

	// Error and debugging
	LogFieldErrorCode = "error_code"
	LogFieldAttempt   = "attempt"
	LogFieldCount     = "count"
)

// Log levels:
//
// DEBUG: per-stage dispatch decisions, raw payload shapes (masked).
// INFO:  startup/shutdown, inbound accepted, outbound sent, config reloads.
// WARN:  dropped webhooks, broken flow data, AI fallbacks, rate limiting.
// ERROR: failed sends, storage failures, provider outages.
