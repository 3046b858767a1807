package memory

import (
	"context"
	"time"

	"qna-dialog-be/internal/repository/contract"
	"qna-dialog-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

type ConversationStateRepository struct {
	cache *cache.Cache
}

func NewConversationStateRepository() contract.ConversationStateRepository {
	// Create a cache with a default expiration time of 1 hour, and which
	// purges expired items every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &ConversationStateRepository{
		cache: c,
	}
}

func (r *ConversationStateRepository) Save(_ context.Context, conv *store.ConversationState) error {
	r.cache.Set(conv.ID, conv, cache.DefaultExpiration)
	return nil
}

func (r *ConversationStateRepository) Get(_ context.Context, conversationID string) (*store.ConversationState, bool, error) {
	if x, found := r.cache.Get(conversationID); found {
		return x.(*store.ConversationState), true, nil
	}
	return nil, false, nil
}

func (r *ConversationStateRepository) Delete(_ context.Context, conversationID string) error {
	r.cache.Delete(conversationID)
	return nil
}
