package repository

import (
	"time"

	"github.com/manuva/chat-backend/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository message data access interface
type MessageRepository interface {
	CreateWithActivity(msg *domain.Message) error
	FindByConversation(conversationID string, before *time.Time, limit int) ([]*domain.MessageResponse, error)
	MarkConversationRead(conversationID, readerID string) (int64, error)
	UnreadCountForUser(viewerID string) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateWithActivity persists a message and bumps the parent conversation's
// last-activity timestamp in one transaction. The conversation row is updated
// first so concurrent sends to the same conversation serialize on its row
// lock before inserting.
func (r *messageRepository) CreateWithActivity(msg *domain.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("updated_at", time.Now())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Create(msg).Error
	})
}

// FindByConversation returns up to limit messages oldest-to-newest, optionally
// only those created strictly before the given cursor, with sender display
// info joined in.
func (r *messageRepository) FindByConversation(conversationID string, before *time.Time, limit int) ([]*domain.MessageResponse, error) {
	var rows []*domain.MessageResponse

	q := r.db.Table("messages AS m").
		Select(`m.id, m.conversation_id, m.sender_id, m.content, m.is_read, m.created_at,
			u.name AS sender_name, u.profile_img AS sender_avatar`).
		Joins("JOIN users u ON m.sender_id = u.id").
		Where("m.conversation_id = ?", conversationID)

	if before != nil {
		q = q.Where("m.created_at < ?", *before)
	}

	err := q.Order("m.created_at ASC, m.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkConversationRead flips is_read on every unread message in the
// conversation not sent by the reader. Idempotent bulk update; returns the
// number of rows changed.
func (r *messageRepository) MarkConversationRead(conversationID, readerID string) (int64, error) {
	res := r.db.Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// UnreadCountForUser counts unread messages addressed to the viewer across
// all conversations they participate in.
func (r *messageRepository) UnreadCountForUser(viewerID string) (int64, error) {
	var count int64
	err := r.db.Table("messages AS m").
		Joins("JOIN conversations c ON m.conversation_id = c.id").
		Where("(c.buyer_id = ? OR c.seller_id = ?)", viewerID, viewerID).
		Where("m.sender_id <> ? AND m.is_read = ?", viewerID, false).
		Count(&count).Error
	return count, err
}
