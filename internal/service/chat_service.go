package service

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/internal/repository"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// Notifier delivers chat events to connected room members. Implemented by
// the WebSocket hub; nil disables real-time delivery. Persistence still
// succeeds: delivery is best-effort on top of the durable store.
type Notifier interface {
	NewMessage(conversationID string, msg *domain.MessageResponse)
	MessagesRead(conversationID, readBy, excludeSession string)
}

// ChatService business logic for conversations and messages
type ChatService interface {
	ListConversations(viewerID string) ([]*domain.ConversationResponse, error)
	GetOrCreateConversation(buyerID, sellerID string) (*domain.Conversation, error)
	ListMessages(conversationID, viewerID string, before *time.Time, limit int) ([]*domain.MessageResponse, error)
	UnreadCount(viewerID string) (int64, error)
	SendMessage(conversationID, senderID, content string) (*domain.MessageResponse, error)
	MarkRead(conversationID, readerID, excludeSession string) error
	IsParticipant(conversationID, userID string) (bool, error)
}

type chatService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	notifier Notifier

	// Per-conversation send locks. Broadcast order must equal persistence
	// order within a conversation, so commit and fan-out enqueue happen
	// under the same lock.
	sendLocks [64]sync.Mutex
}

// NewChatService creates a new ChatService
func NewChatService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	notifier Notifier,
) ChatService {
	return &chatService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		notifier: notifier,
	}
}

// storeErr tags unexpected datastore failures so callers see a stable
// sentinel instead of driver detail
func storeErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func (s *chatService) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &s.sendLocks[h.Sum32()%uint32(len(s.sendLocks))]
}

// ListConversations returns the viewer's conversation list, newest activity first
func (s *chatService) ListConversations(viewerID string) ([]*domain.ConversationResponse, error) {
	rows, err := s.convRepo.ListByUser(viewerID)
	if err != nil {
		return nil, storeErr(err)
	}
	if rows == nil {
		rows = []*domain.ConversationResponse{}
	}
	return rows, nil
}

// GetOrCreateConversation upserts the conversation for the pair
func (s *chatService) GetOrCreateConversation(buyerID, sellerID string) (*domain.Conversation, error) {
	if sellerID == "" {
		return nil, common.ErrInvalidInput
	}
	if buyerID == sellerID {
		return nil, common.ErrSelfConversation
	}

	exists, err := s.userRepo.ExistsByID(sellerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, common.ErrNotFound
	}

	return s.convRepo.GetOrCreate(buyerID, sellerID)
}

// ListMessages returns paged history oldest-to-newest and, as a side effect,
// marks everything not sent by the viewer as read (read-on-view).
func (s *chatService) ListMessages(conversationID, viewerID string, before *time.Time, limit int) ([]*domain.MessageResponse, error) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	if _, err := s.participantConversation(conversationID, viewerID); err != nil {
		return nil, err
	}

	rows, err := s.msgRepo.FindByConversation(conversationID, before, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	if rows == nil {
		rows = []*domain.MessageResponse{}
	}

	changed, err := s.msgRepo.MarkConversationRead(conversationID, viewerID)
	if err != nil {
		return nil, storeErr(err)
	}
	if changed > 0 && s.notifier != nil {
		s.notifier.MessagesRead(conversationID, viewerID, "")
	}

	return rows, nil
}

// UnreadCount returns the viewer's total unread message count
func (s *chatService) UnreadCount(viewerID string) (int64, error) {
	count, err := s.msgRepo.UnreadCountForUser(viewerID)
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

// SendMessage validates, persists, and fans out a message. Validation
// failures return before any mutation; fan-out happens only after the
// transaction commits.
func (s *chatService) SendMessage(conversationID, senderID, content string) (*domain.MessageResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, common.ErrEmptyMessage
	}

	conv, err := s.participantConversation(conversationID, senderID)
	if err != nil {
		return nil, err
	}

	sender, err := s.userRepo.FindByID(senderID)
	if err != nil {
		return nil, storeErr(err)
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
	}

	lock := s.lockFor(conv.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.msgRepo.CreateWithActivity(msg); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Conversation deleted between the membership check and the write
			return nil, common.ErrConversationNotFound
		}
		return nil, storeErr(err)
	}

	resp := &domain.MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     sender.Name,
		SenderAvatar:   sender.ProfileImg,
		Content:        msg.Content,
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt,
	}

	if s.notifier != nil {
		s.notifier.NewMessage(conv.ID, resp)
	}

	return resp, nil
}

// MarkRead flips unread messages addressed to the reader and notifies the
// room. Idempotent; a second call with nothing unread changes no rows.
func (s *chatService) MarkRead(conversationID, readerID, excludeSession string) error {
	if _, err := s.participantConversation(conversationID, readerID); err != nil {
		return err
	}

	if _, err := s.msgRepo.MarkConversationRead(conversationID, readerID); err != nil {
		return storeErr(err)
	}

	if s.notifier != nil {
		s.notifier.MessagesRead(conversationID, readerID, excludeSession)
	}
	return nil
}

// IsParticipant reports whether the user is buyer or seller on the conversation
func (s *chatService) IsParticipant(conversationID, userID string) (bool, error) {
	_, err := s.participantConversation(conversationID, userID)
	if err != nil {
		if errors.Is(err, common.ErrAccessDenied) || errors.Is(err, common.ErrConversationNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// participantConversation loads the conversation and enforces membership
func (s *chatService) participantConversation(conversationID, userID string) (*domain.Conversation, error) {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrConversationNotFound
		}
		return nil, storeErr(err)
	}
	if !conv.HasParticipant(userID) {
		return nil, common.ErrAccessDenied
	}
	return conv, nil
}
