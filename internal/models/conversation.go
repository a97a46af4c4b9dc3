package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title"`
	Messages  []Message      `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	User      User           `gorm:"foreignKey:UserID" json:"-"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (Conversation) TableName() string {
	return "conversations"
}

type MessageSender string

const (
	SenderUser      MessageSender = "user"
	SenderAssistant MessageSender = "assistant"
	SenderSystem    MessageSender = "system"
)

type MessageInputType string

const (
	InputTypeText        MessageInputType = "text"
	InputTypeImageUpload MessageInputType = "image_upload"
	InputTypeSocialLink  MessageInputType = "social_link_upload"
)

type Message struct {
	ID             uint             `gorm:"primarykey" json:"id"`
	ConversationID uuid.UUID        `gorm:"type:uuid;not null;index" json:"conversation_id"`
	Sender         MessageSender    `gorm:"type:varchar(50);not null" json:"sender"`
	InputType      MessageInputType `gorm:"type:varchar(20);not null;default:'text'" json:"input_type"`
	TextContent    string           `gorm:"type:text" json:"text_content"`
	ImageURL       string           `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	AnalysisData   JSON             `gorm:"type:jsonb" json:"analysis_data,omitempty"`
	CreatedAt      time.Time        `gorm:"not null;index" json:"created_at"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

func (Message) TableName() string {
	return "messages"
}

type FavoriteConversation struct {
	ID             uint         `gorm:"primarykey" json:"id"`
	UserID         uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_conversation" json:"user_id"`
	ConversationID uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_conversation" json:"conversation_id"`
	CreatedAt      time.Time    `json:"created_at"`
	Conversation   Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

func (FavoriteConversation) TableName() string {
	return "favorite_conversations"
}
