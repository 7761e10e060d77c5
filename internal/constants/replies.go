package constants

// Canned outbound messages.
const (
	DefaultReply          = "I'm sorry, I didn't understand that. Please try again or type 'help' for assistance."
	AIApologyReply        = "I'm sorry, I'm having trouble responding right now. Please try again later."
	ButtonFallbackBody    = "Please choose an option:"
	RepromptFormat        = "Please reply with \"%s\" to continue."
	NoMessageToProcess    = "No message to process"
	PreferredLanguageHint = "Respond in %s."
)
