package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"qna-dialog-be/internal/repository/contract"
	"qna-dialog-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "dialog:conversation:"
	stateTTL  = 1 * time.Hour
)

// ConversationStateRepository keeps live conversation snapshots in Redis so
// turns survive restarts and multiple replicas see the same state.
type ConversationStateRepository struct {
	client *redis.Client
}

func NewConversationStateRepository(client *redis.Client) contract.ConversationStateRepository {
	return &ConversationStateRepository{client: client}
}

func (r *ConversationStateRepository) key(conversationID string) string {
	return keyPrefix + conversationID
}

func (r *ConversationStateRepository) Save(ctx context.Context, conv *store.ConversationState) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	return r.client.Set(ctx, r.key(conv.ID), data, stateTTL).Err()
}

func (r *ConversationStateRepository) Get(ctx context.Context, conversationID string) (*store.ConversationState, bool, error) {
	data, err := r.client.Get(ctx, r.key(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var conv store.ConversationState
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	return &conv, true, nil
}

func (r *ConversationStateRepository) Delete(ctx context.Context, conversationID string) error {
	return r.client.Del(ctx, r.key(conversationID)).Err()
}
