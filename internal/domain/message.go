package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a single chat message. is_read only ever transitions false→true,
// and only through the read-receipt path of a non-sender participant.
type Message struct {
	ID             string    `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:char(36);not null;index" json:"conversation_id"`
	SenderID       string    `gorm:"column:sender_id;type:char(36);not null;index" json:"sender_id"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	IsRead         bool      `gorm:"column:is_read;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns a UUID primary key
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// MessageResponse is a message with the sender's display info attached
type MessageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}
