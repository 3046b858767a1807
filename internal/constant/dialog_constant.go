package constant

// Transcript roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Async topics (in-process watermill bus)
const (
	RecordTurnTopic = "RECORD_CONVERSATION_TURN"
)

// Event types published on the NATS bus
const (
	EventTurnDecided         = "DIALOG_TURN_DECIDED"
	EventConversationStarted = "DIALOG_CONVERSATION_STARTED"
)

// WelcomeMessage greets a freshly created conversation
const WelcomeMessage = "Hi! Ask me anything and I'll do my best to find an answer."
