// FILE: internal/service/consumer_service.go
package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"qna-dialog-be/internal/constant"
	"qna-dialog-be/internal/dto"
	"qna-dialog-be/internal/entity"
	"qna-dialog-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// IConsumerService drains the async bus and persists conversation turns.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.RecordTurnMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal turn message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	now := time.Now()
	turns := []*entity.ConversationTurn{
		{
			Id:             uuid.New(),
			ConversationId: payload.ConversationId,
			Role:           constant.RoleUser,
			Message:        payload.UserMessage,
			State:          payload.State,
			CreatedAt:      now,
		},
		{
			Id:             uuid.New(),
			ConversationId: payload.ConversationId,
			Role:           constant.RoleAssistant,
			Message:        payload.BotMessage,
			State:          payload.State,
			Decision:       payload.Decision,
			Score:          payload.Score,
			Options:        optionsToEntity(payload.Options),
			CreatedAt:      now,
		},
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationTurnRepository().CreateBulk(ctx, turns); err != nil {
		log.Printf("[ERROR] Failed to persist turns for conversation %s: %v", payload.ConversationId, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	msg.Ack()
}

func optionsToEntity(options []dto.ReplyOptionDTO) []entity.TurnOption {
	if len(options) == 0 {
		return nil
	}
	out := make([]entity.TurnOption, len(options))
	for i, o := range options {
		out[i] = entity.TurnOption{Label: o.Label, Payload: o.Payload}
	}
	return out
}
