package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a buyer/seller chat thread. At most one row exists per
// participant pair; roles are fixed by whoever initiated first contact.
type Conversation struct {
	ID       string `gorm:"column:id;type:char(36);primaryKey" json:"id"`
	BuyerID  string `gorm:"column:buyer_id;type:char(36);not null;uniqueIndex:uq_conversation_pair;index" json:"buyer_id"`
	SellerID string `gorm:"column:seller_id;type:char(36);not null;uniqueIndex:uq_conversation_pair;index" json:"seller_id"`
	// PairKey is the order-independent identity of the pair; its unique
	// index holds even when two first contacts race with reversed roles.
	PairKey   string    `gorm:"column:pair_key;type:varchar(80);not null;uniqueIndex:uq_conversation_pair_key" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// PairKey returns the order-independent key for a participant pair
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// BeforeCreate assigns a UUID primary key and the normalized pair key
func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.BuyerID, c.SellerID)
	}
	return nil
}

// HasParticipant reports whether userID is the buyer or the seller
func (c *Conversation) HasParticipant(userID string) bool {
	return c.BuyerID == userID || c.SellerID == userID
}

// CreateConversationRequest starts (or fetches) a conversation with a seller
type CreateConversationRequest struct {
	SellerID string `json:"seller_id" binding:"required"`
}

// ConversationResponse is a conversation annotated for the viewer's list:
// both participants' display info, last message preview, and the viewer's
// unread count.
type ConversationResponse struct {
	ID            string     `json:"id"`
	BuyerID       string     `json:"buyer_id"`
	SellerID      string     `json:"seller_id"`
	BuyerName     string     `json:"buyer_name"`
	BuyerAvatar   string     `json:"buyer_avatar"`
	SellerName    string     `json:"seller_name"`
	SellerAvatar  string     `json:"seller_avatar"`
	LastMessage   *string    `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int64      `json:"unread_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
