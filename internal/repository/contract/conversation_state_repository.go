package contract

import (
	"context"

	"qna-dialog-be/pkg/store"
)

// ConversationStateRepository stores the live snapshot a conversation needs
// between turns. Backed by process memory or Redis depending on deployment.
type ConversationStateRepository interface {
	Save(ctx context.Context, conv *store.ConversationState) error
	Get(ctx context.Context, conversationID string) (*store.ConversationState, bool, error)
	Delete(ctx context.Context, conversationID string) error
}
