package events

import "time"

// NewConversationStarted signals that a user opened a fresh conversation.
func NewConversationStarted(conversationID, userID string) Event {
	return BaseEvent{
		Type: "DIALOG_CONVERSATION_STARTED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         userID,
		},
		OccurredAt: time.Now(),
	}
}

// NewTurnDecided carries the policy outcome of one handled turn for
// downstream analytics.
func NewTurnDecided(conversationID, state, decision string, score float64) Event {
	return BaseEvent{
		Type: "DIALOG_TURN_DECIDED",
		Data: map[string]interface{}{
			"conversation_id": conversationID,
			"state":           state,
			"decision":        decision,
			"score":           score,
		},
		OccurredAt: time.Now(),
	}
}
