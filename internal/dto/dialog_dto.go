package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=255"`
}

type CreateConversationResponse struct {
	Id      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	State   string    `json:"state"`
	Welcome string    `json:"welcome"`
}

type SendMessageRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	Message        string    `json:"message" validate:"required,max=2000"`
}

// ReplyOptionDTO is one quick reply the client should render. Payload is
// sent back verbatim as the next message when the user taps it.
type ReplyOptionDTO struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

type SendMessageResponse struct {
	ConversationId uuid.UUID        `json:"conversation_id"`
	State          string           `json:"state"`
	Decision       string           `json:"decision"`
	Kind           string           `json:"kind"` // "answer" | "choices" | "prompt" | "message"
	Text           string           `json:"text"`
	Answer         string           `json:"answer,omitempty"`
	Uncertain      bool             `json:"uncertain,omitempty"`
	Options        []ReplyOptionDTO `json:"options,omitempty"`
}

type GetHistoryResponse struct {
	Id        uuid.UUID        `json:"id"`
	Role      string           `json:"role"`
	Message   string           `json:"message"`
	State     string           `json:"state,omitempty"`
	Decision  string           `json:"decision,omitempty"`
	Options   []ReplyOptionDTO `json:"options,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

type GetAllConversationsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type DeleteConversationRequest struct {
	ConversationId uuid.UUID `json:"conversation_id"`
}

// RecordTurnMessage is the async payload handed to the transcript consumer
// after each handled turn.
type RecordTurnMessage struct {
	ConversationId uuid.UUID        `json:"conversation_id"`
	UserMessage    string           `json:"user_message"`
	BotMessage     string           `json:"bot_message"`
	State          string           `json:"state"`
	Decision       string           `json:"decision"`
	Score          float64          `json:"score"`
	Options        []ReplyOptionDTO `json:"options,omitempty"`
}
