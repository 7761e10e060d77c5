package metrics

// Metric names recorded by the inbound pipeline and HTTP layer.
const (
	InboundMessagesTotal   = "inbound_messages_total"
	InboundDuplicatesTotal = "inbound_duplicates_total"
	InboundDroppedTotal    = "inbound_dropped_total"
	DispatchOutcomeTotal   = "dispatch_outcome_total"
	FlowTransitionsTotal   = "flow_transitions_total"
	OutboundMessagesTotal  = "outbound_messages_total"
	AICompletionDuration   = "ai_completion_duration"
	AICompletionsTotal     = "ai_completions_total"
	HTTPRequestsTotal      = "http_requests_total"
	HTTPRequestDuration    = "http_request_duration"
	HTTPRateLimitedTotal   = "http_rate_limited_total"
	InboxSubscribers       = "inbox_subscribers"
	RetentionDeletedTotal  = "retention_deleted_total"
)
