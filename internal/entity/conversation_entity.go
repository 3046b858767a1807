package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;index"`
	Title     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// TurnOption is one quick-reply offered to the user on a turn, stored as
// part of the transcript so past choices can be replayed.
type TurnOption struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

type ConversationTurn struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;index"`
	Role           string
	Message        string
	State          string
	Decision       string
	Score          float64
	Options        []TurnOption
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
