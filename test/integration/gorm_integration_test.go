package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"qna-dialog-be/internal/constant"
	"qna-dialog-be/internal/entity"
	"qna-dialog-be/internal/model"
	"qna-dialog-be/internal/repository/specification"
	"qna-dialog-be/internal/repository/unitofwork"
	"qna-dialog-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	if err := gormDB.AutoMigrate(&model.Conversation{}, &model.ConversationTurn{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ConversationRepository())
	assert.NotNil(t, uow.ConversationTurnRepository())

	ctx := context.Background()
	userId := uuid.New()

	conversation := &entity.Conversation{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     "Integration test conversation",
		CreatedAt: time.Now(),
	}
	assert.NoError(t, uow.ConversationRepository().Create(ctx, conversation))
	defer gormDB.Unscoped().Delete(&model.Conversation{}, conversation.Id)
	defer gormDB.Unscoped().Where("conversation_id = ?", conversation.Id).Delete(&model.ConversationTurn{})

	turns := []*entity.ConversationTurn{
		{
			Id:             uuid.New(),
			ConversationId: conversation.Id,
			Role:           constant.RoleUser,
			Message:        "how do I reset my password",
			State:          "TOP_LEVEL_QUESTION",
			CreatedAt:      time.Now(),
		},
		{
			Id:             uuid.New(),
			ConversationId: conversation.Id,
			Role:           constant.RoleAssistant,
			Message:        "Use the forgot-password link on the login page.",
			State:          "FOLLOWUP_QUESTION",
			Decision:       "ANSWER",
			Score:          0.91,
			Options: []entity.TurnOption{
				{Label: "None of the above", Payload: "0"},
			},
			CreatedAt: time.Now(),
		},
	}
	assert.NoError(t, uow.ConversationTurnRepository().CreateBulk(ctx, turns))

	// Read back through specifications, oldest first
	loaded, err := uow.ConversationTurnRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversation.Id},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	assert.NoError(t, err)
	assert.Len(t, loaded, 2)
	assert.Equal(t, constant.RoleUser, loaded[0].Role)
	assert.Equal(t, "ANSWER", loaded[1].Decision)

	// The options JSON round-trips through the jsonb column
	assert.Len(t, loaded[1].Options, 1)
	assert.Equal(t, "0", loaded[1].Options[0].Payload)

	count, err := uow.ConversationTurnRepository().Count(ctx,
		specification.ByConversationID{ConversationID: conversation.Id},
	)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
