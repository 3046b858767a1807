// FILE: internal/service/dialog_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"qna-dialog-be/internal/constant"
	"qna-dialog-be/internal/dto"
	"qna-dialog-be/internal/entity"
	"qna-dialog-be/internal/pkg/logger"
	"qna-dialog-be/internal/repository/contract"
	"qna-dialog-be/internal/repository/specification"
	"qna-dialog-be/internal/repository/unitofwork"
	"qna-dialog-be/pkg/dialog"
	"qna-dialog-be/pkg/dialog/response"
	"qna-dialog-be/pkg/events"
	pkgNats "qna-dialog-be/pkg/nats"
	"qna-dialog-be/pkg/qna/spell"
	"qna-dialog-be/pkg/store"

	"github.com/google/uuid"
)

// IDialogService defines the conversational QnA service interface
type IDialogService interface {
	CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error)
	GetAllConversations(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllConversationsResponse, error)
	GetHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.GetHistoryResponse, error)
	SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error)
	DeleteConversation(ctx context.Context, userId uuid.UUID, request *dto.DeleteConversationRequest) error
}

var ErrConversationNotFound = fmt.Errorf("conversation not found")

// dialogService coordinates the dialog engine with persistence and the
// async buses. Turns for the same conversation are serialized; different
// conversations run concurrently.
type dialogService struct {
	uowFactory unitofwork.RepositoryFactory
	stateRepo  contract.ConversationStateRepository
	machine    *dialog.Machine
	corrector  *spell.Corrector
	publisher  IPublisherService
	natsPub    *pkgNats.Publisher
	sysLogger  logger.ILogger

	// One mutex per live conversation
	turnLocks sync.Map
}

// NewDialogService creates the dialog service with all domain components
func NewDialogService(
	uowFactory unitofwork.RepositoryFactory,
	stateRepo contract.ConversationStateRepository,
	machine *dialog.Machine,
	corrector *spell.Corrector,
	publisher IPublisherService,
	natsPub *pkgNats.Publisher,
	sysLogger logger.ILogger,
) IDialogService {
	return &dialogService{
		uowFactory: uowFactory,
		stateRepo:  stateRepo,
		machine:    machine,
		corrector:  corrector,
		publisher:  publisher,
		natsPub:    natsPub,
		sysLogger:  sysLogger,
	}
}

// InitDialogLogger builds the file logger the dialog engine writes its
// per-turn trace to.
func InitDialogLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "dialog_turns.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[DIALOG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

func (ds *dialogService) lockConversation(id string) func() {
	v, _ := ds.turnLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (ds *dialogService) CreateConversation(ctx context.Context, userId uuid.UUID, request *dto.CreateConversationRequest) (*dto.CreateConversationResponse, error) {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	title := request.Title
	if title == "" {
		title = "New conversation"
	}

	conversation := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, err
	}

	// Seed the live snapshot in the welcome state
	state := &store.ConversationState{
		ID:     conversation.Id.String(),
		UserID: userId.String(),
		State:  store.StateWelcome,
	}
	if err := ds.stateRepo.Save(ctx, state); err != nil {
		return nil, err
	}

	if ds.natsPub != nil {
		if err := ds.natsPub.Publish(ctx, events.NewConversationStarted(state.ID, state.UserID)); err != nil {
			ds.sysLogger.Warn("dialog", "Failed to publish conversation-started event", map[string]interface{}{"error": err.Error()})
		}
	}

	return &dto.CreateConversationResponse{
		Id:      conversation.Id,
		Title:   conversation.Title,
		State:   state.State,
		Welcome: constant.WelcomeMessage,
	}, nil
}

func (ds *dialogService) GetAllConversations(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllConversationsResponse, error) {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.GetAllConversationsResponse, len(conversations))
	for i, c := range conversations {
		res[i] = &dto.GetAllConversationsResponse{
			Id:        c.Id,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
	}
	return res, nil
}

func (ds *dialogService) GetHistory(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) ([]*dto.GetHistoryResponse, error) {
	uow := ds.uowFactory.NewUnitOfWork(ctx)

	if _, err := ds.ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return nil, err
	}

	turns, err := uow.ConversationTurnRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.GetHistoryResponse, len(turns))
	for i, t := range turns {
		res[i] = &dto.GetHistoryResponse{
			Id:        t.Id,
			Role:      t.Role,
			Message:   t.Message,
			State:     t.State,
			Decision:  t.Decision,
			Options:   turnOptionsToDTO(t.Options),
			CreatedAt: t.CreatedAt,
		}
	}
	return res, nil
}

func (ds *dialogService) SendMessage(ctx context.Context, userId uuid.UUID, request *dto.SendMessageRequest) (*dto.SendMessageResponse, error) {
	unlock := ds.lockConversation(request.ConversationId.String())
	defer unlock()

	uow := ds.uowFactory.NewUnitOfWork(ctx)
	if _, err := ds.ownedConversation(ctx, uow, userId, request.ConversationId); err != nil {
		return nil, err
	}

	state, err := ds.loadState(ctx, userId, request.ConversationId)
	if err != nil {
		return nil, err
	}

	// Best-effort spelling normalization before the engine sees the input
	utterance := ds.corrector.Correct(ctx, request.Message)

	result := ds.machine.Handle(ctx, state, utterance)

	if err := ds.stateRepo.Save(ctx, state); err != nil {
		// The turn already happened; losing the snapshot would desync the
		// next turn, so this one fails loudly.
		return nil, err
	}

	ds.recordTurn(state, request, result)

	return &dto.SendMessageResponse{
		ConversationId: request.ConversationId,
		State:          state.State,
		Decision:       result.Decision,
		Kind:           string(result.Action.Kind),
		Text:           result.Action.Text,
		Answer:         result.Action.Answer,
		Uncertain:      result.Action.Uncertain,
		Options:        actionOptionsToDTO(result.Action),
	}, nil
}

func (ds *dialogService) DeleteConversation(ctx context.Context, userId uuid.UUID, request *dto.DeleteConversationRequest) error {
	unlock := ds.lockConversation(request.ConversationId.String())
	defer unlock()

	uow := ds.uowFactory.NewUnitOfWork(ctx)
	conversation, err := ds.ownedConversation(ctx, uow, userId, request.ConversationId)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ConversationTurnRepository().DeleteByConversationId(ctx, conversation.Id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, conversation.Id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if err := ds.stateRepo.Delete(ctx, conversation.Id.String()); err != nil {
		ds.sysLogger.Warn("dialog", "Failed to drop live state", map[string]interface{}{"error": err.Error()})
	}
	ds.turnLocks.Delete(conversation.Id.String())
	return nil
}

// ownedConversation loads the conversation and enforces ownership
func (ds *dialogService) ownedConversation(ctx context.Context, uow unitofwork.UnitOfWork, userId, conversationId uuid.UUID) (*entity.Conversation, error) {
	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

// loadState fetches the live snapshot, reseeding a welcome-state one when
// the cached snapshot has expired.
func (ds *dialogService) loadState(ctx context.Context, userId, conversationId uuid.UUID) (*store.ConversationState, error) {
	state, found, err := ds.stateRepo.Get(ctx, conversationId.String())
	if err != nil {
		return nil, err
	}
	if found {
		return state, nil
	}

	ds.sysLogger.Info("dialog", "Live state expired, reseeding", map[string]interface{}{
		"conversation_id": conversationId.String(),
	})
	return &store.ConversationState{
		ID:     conversationId.String(),
		UserID: userId.String(),
		State:  store.StateWelcome,
	}, nil
}

// recordTurn fans the handled turn out to the transcript consumer and the
// analytics bus. Both are best effort; a bus hiccup never fails the turn.
func (ds *dialogService) recordTurn(state *store.ConversationState, request *dto.SendMessageRequest, result *dialog.TurnResult) {
	msg := &dto.RecordTurnMessage{
		ConversationId: request.ConversationId,
		UserMessage:    request.Message,
		BotMessage:     result.Action.Text,
		State:          state.State,
		Decision:       result.Decision,
		Score:          result.Score,
		Options:        actionOptionsToDTO(result.Action),
	}
	if err := ds.publisher.Publish(msg); err != nil {
		ds.sysLogger.Error("dialog", "Failed to enqueue transcript turn", map[string]interface{}{"error": err.Error()})
	}

	if ds.natsPub != nil {
		event := events.NewTurnDecided(state.ID, state.State, result.Decision, result.Score)
		if err := ds.natsPub.Publish(context.Background(), event); err != nil {
			ds.sysLogger.Warn("dialog", "Failed to publish turn event", map[string]interface{}{"error": err.Error()})
		}
	}
}

func actionOptionsToDTO(action *response.Action) []dto.ReplyOptionDTO {
	if len(action.Options) == 0 {
		return nil
	}
	options := make([]dto.ReplyOptionDTO, len(action.Options))
	for i, o := range action.Options {
		options[i] = dto.ReplyOptionDTO{Label: o.Label, Payload: o.Payload}
	}
	return options
}

func turnOptionsToDTO(options []entity.TurnOption) []dto.ReplyOptionDTO {
	if len(options) == 0 {
		return nil
	}
	out := make([]dto.ReplyOptionDTO, len(options))
	for i, o := range options {
		out[i] = dto.ReplyOptionDTO{Label: o.Label, Payload: o.Payload}
	}
	return out
}
