package repository

import (
	"errors"
	"sort"
	"time"

	"github.com/manuva/chat-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository conversation data access interface
type ConversationRepository interface {
	GetOrCreate(buyerID, sellerID string) (*domain.Conversation, error)
	FindByID(id string) (*domain.Conversation, error)
	FindByPair(userA, userB string) (*domain.Conversation, error)
	ListByUser(viewerID string) ([]*domain.ConversationResponse, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// GetOrCreate returns the conversation for the {buyer, seller} pair, creating
// it on first contact. The pair is unordered for lookup purposes: if the
// callee already opened a conversation with the caller, that row is reused
// with its original role assignment. Concurrent first contacts resolve
// through the unique index on (buyer_id, seller_id).
func (r *conversationRepository) GetOrCreate(buyerID, sellerID string) (*domain.Conversation, error) {
	conv, err := r.FindByPair(buyerID, sellerID)
	if err == nil {
		// Refresh activity like an upsert would
		now := time.Now()
		if err := r.db.Model(conv).Update("updated_at", now).Error; err != nil {
			return nil, err
		}
		conv.UpdatedAt = now
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	conv = &domain.Conversation{BuyerID: buyerID, SellerID: sellerID}
	err = r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "seller_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"updated_at": time.Now()}),
	}).Create(conv).Error
	if err != nil {
		// A concurrent first contact may have won with reversed roles,
		// tripping the pair_key index instead of the upsert target.
		if existing, ferr := r.FindByPair(buyerID, sellerID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}

	// On conflict the generated ID above does not match the stored row;
	// always re-read the winner.
	return r.FindByPair(buyerID, sellerID)
}

// FindByID finds a conversation by ID
func (r *conversationRepository) FindByID(id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	if err := r.db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByPair finds the conversation between two users regardless of roles
func (r *conversationRepository) FindByPair(userA, userB string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.
		Where("(buyer_id = ? AND seller_id = ?) OR (buyer_id = ? AND seller_id = ?)",
			userA, userB, userB, userA).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser returns every conversation the viewer participates in, annotated
// with participant display info, last message preview, and the viewer's
// unread count. Ordered by last message time descending; conversations with
// no messages yet sort last.
func (r *conversationRepository) ListByUser(viewerID string) ([]*domain.ConversationResponse, error) {
	var rows []*domain.ConversationResponse

	err := r.db.Table("conversations AS c").
		Select(`c.id, c.buyer_id, c.seller_id, c.created_at, c.updated_at,
			buyer.name AS buyer_name, buyer.profile_img AS buyer_avatar,
			seller.name AS seller_name, seller.profile_img AS seller_avatar`).
		Joins("JOIN users buyer ON c.buyer_id = buyer.id").
		Joins("JOIN users seller ON c.seller_id = seller.id").
		Where("c.buyer_id = ? OR c.seller_id = ?", viewerID, viewerID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]string, len(rows))
	byID := make(map[string]*domain.ConversationResponse, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		byID[row.ID] = row
	}

	// Last message per conversation
	type preview struct {
		ConversationID string
		Content        string
		CreatedAt      time.Time
	}
	var previews []preview
	err = r.db.Table("messages AS m").
		Select("m.conversation_id, m.content, m.created_at").
		Joins(`JOIN (SELECT conversation_id, MAX(created_at) AS max_created
			FROM messages WHERE conversation_id IN ?
			GROUP BY conversation_id) latest
			ON m.conversation_id = latest.conversation_id
			AND m.created_at = latest.max_created`, ids).
		Scan(&previews).Error
	if err != nil {
		return nil, err
	}
	for i := range previews {
		if row, ok := byID[previews[i].ConversationID]; ok {
			content := previews[i].Content
			at := previews[i].CreatedAt
			row.LastMessage = &content
			row.LastMessageAt = &at
		}
	}

	// Viewer-scoped unread counts
	type unread struct {
		ConversationID string
		Count          int64
	}
	var unreads []unread
	err = r.db.Table("messages").
		Select("conversation_id, COUNT(*) AS count").
		Where("conversation_id IN ? AND is_read = ? AND sender_id <> ?", ids, false, viewerID).
		Group("conversation_id").
		Scan(&unreads).Error
	if err != nil {
		return nil, err
	}
	for _, u := range unreads {
		if row, ok := byID[u.ConversationID]; ok {
			row.UnreadCount = u.Count
		}
	}

	// Most recent activity first; conversations with no messages sort last
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].LastMessageAt, rows[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return rows, nil
}
