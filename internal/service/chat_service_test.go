package service

import (
	"sync"
	"testing"
	"time"

	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/internal/migration"
	"github.com/manuva/chat-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// notifierRecorder captures fan-out calls for assertions
type notifierRecorder struct {
	mu       sync.Mutex
	messages []*domain.MessageResponse
	reads    []readCall
}

type readCall struct {
	conversationID string
	readBy         string
	excludeSession string
}

func (r *notifierRecorder) NewMessage(_ string, msg *domain.MessageResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *notifierRecorder) MessagesRead(conversationID, readBy, excludeSession string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, readCall{conversationID, readBy, excludeSession})
}

func (r *notifierRecorder) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reads)
}

type testEnv struct {
	db       *gorm.DB
	svc      ChatService
	notifier *notifierRecorder
}

func setupService(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	assert.NoError(t, migration.Run(db))

	for _, u := range []struct{ id, name string }{
		{"amara", "Amara"},
		{"bruno", "Bruno"},
		{"chioma", "Chioma"},
	} {
		err := db.Create(&domain.User{ID: u.id, Name: u.name, ProfileImg: u.name + ".png", IsActive: true}).Error
		assert.NoError(t, err)
	}

	notifier := &notifierRecorder{}
	svc := NewChatService(
		repository.NewConversationRepository(db),
		repository.NewMessageRepository(db),
		repository.NewUserRepository(db),
		notifier,
	)
	return &testEnv{db: db, svc: svc, notifier: notifier}
}

func (e *testEnv) conversation(t *testing.T, buyerID, sellerID string) *domain.Conversation {
	conv, err := e.svc.GetOrCreateConversation(buyerID, sellerID)
	assert.NoError(t, err)
	return conv
}

func TestGetOrCreateConversation_Validation(t *testing.T) {
	env := setupService(t)

	_, err := env.svc.GetOrCreateConversation("amara", "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = env.svc.GetOrCreateConversation("amara", "amara")
	assert.ErrorIs(t, err, common.ErrSelfConversation)

	_, err = env.svc.GetOrCreateConversation("amara", "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetOrCreateConversation_SamePairSameThread(t *testing.T) {
	env := setupService(t)

	first := env.conversation(t, "amara", "bruno")
	second := env.conversation(t, "bruno", "amara")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "amara", second.BuyerID)
}

func TestSendMessage_PersistsAndFansOut(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	msg, err := env.svc.SendMessage(conv.ID, "amara", "  is this still available?  ")

	assert.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "is this still available?", msg.Content)
	assert.Equal(t, "Amara", msg.SenderName)
	assert.Equal(t, "Amara.png", msg.SenderAvatar)
	assert.False(t, msg.IsRead)

	// Fan-out got the same persisted message
	assert.Len(t, env.notifier.messages, 1)
	assert.Equal(t, msg.ID, env.notifier.messages[0].ID)

	// Unread is recipient-scoped
	count, err := env.svc.UnreadCount("bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = env.svc.UnreadCount("amara")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSendMessage_WhitespaceOnlyRejectedBeforeWrite(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.SendMessage(conv.ID, "amara", "   \n\t  ")

	assert.ErrorIs(t, err, common.ErrEmptyMessage)
	assert.Len(t, env.notifier.messages, 0)

	var count int64
	assert.NoError(t, env.db.Model(&domain.Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestSendMessage_MembershipEnforced(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.SendMessage(conv.ID, "chioma", "let me in")
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = env.svc.SendMessage("no-such-conversation", "amara", "hello?")
	assert.ErrorIs(t, err, common.ErrConversationNotFound)

	assert.Len(t, env.notifier.messages, 0)
}

func TestListMessages_ReadOnView(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.SendMessage(conv.ID, "amara", "first")
	assert.NoError(t, err)
	_, err = env.svc.SendMessage(conv.ID, "amara", "second")
	assert.NoError(t, err)

	// Bruno opening the thread marks Amara's messages read and emits one
	// conversation-level receipt.
	msgs, err := env.svc.ListMessages(conv.ID, "bruno", nil, 0)
	assert.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)

	assert.Equal(t, 1, env.notifier.readCount())
	assert.Equal(t, readCall{conv.ID, "bruno", ""}, env.notifier.reads[0])

	count, err := env.svc.UnreadCount("bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// A second view changes nothing and stays silent
	_, err = env.svc.ListMessages(conv.ID, "bruno", nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, 1, env.notifier.readCount())
}

func TestListMessages_SenderViewDoesNotReceipt(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.SendMessage(conv.ID, "amara", "hello")
	assert.NoError(t, err)

	// Amara re-reading her own outgoing message flips nothing
	_, err = env.svc.ListMessages(conv.ID, "amara", nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, env.notifier.readCount())

	count, err := env.svc.UnreadCount("bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListMessages_Pagination(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	// Seed with explicit timestamps for a deterministic sequence
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	contents := []string{"one", "two", "three", "four", "five"}
	for i, content := range contents {
		msg := &domain.Message{
			ConversationID: conv.ID,
			SenderID:       "amara",
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		assert.NoError(t, env.db.Create(msg).Error)
	}

	page, err := env.svc.ListMessages(conv.ID, "bruno", nil, 2)
	assert.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "one", page[0].Content)
	assert.Equal(t, "two", page[1].Content)

	cursor := base.Add(3 * time.Minute) // "four"
	older, err := env.svc.ListMessages(conv.ID, "bruno", &cursor, 10)
	assert.NoError(t, err)
	assert.Len(t, older, 3)
	assert.Equal(t, "three", older[2].Content)
}

func TestListMessages_MembershipEnforced(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.ListMessages(conv.ID, "chioma", nil, 0)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = env.svc.ListMessages("no-such-conversation", "amara", nil, 0)
	assert.ErrorIs(t, err, common.ErrConversationNotFound)
}

func TestMarkRead_NotifiesWithSessionExclusion(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	_, err := env.svc.SendMessage(conv.ID, "amara", "hello")
	assert.NoError(t, err)

	err = env.svc.MarkRead(conv.ID, "bruno", "session-1")
	assert.NoError(t, err)
	assert.Equal(t, readCall{conv.ID, "bruno", "session-1"}, env.notifier.reads[0])

	count, err := env.svc.UnreadCount("bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Repeat is harmless; the receipt still goes out
	err = env.svc.MarkRead(conv.ID, "bruno", "session-1")
	assert.NoError(t, err)
	assert.Equal(t, 2, env.notifier.readCount())
}

func TestMarkRead_MembershipEnforced(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	err := env.svc.MarkRead(conv.ID, "chioma", "session-1")
	assert.ErrorIs(t, err, common.ErrAccessDenied)
	assert.Equal(t, 0, env.notifier.readCount())
}

func TestIsParticipant(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	ok, err := env.svc.IsParticipant(conv.ID, "amara")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.svc.IsParticipant(conv.ID, "chioma")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.svc.IsParticipant("no-such-conversation", "amara")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreFailureSurfacesAsStoreUnavailable(t *testing.T) {
	env := setupService(t)
	conv := env.conversation(t, "amara", "bruno")

	// Break the store underneath the service
	assert.NoError(t, env.db.Migrator().DropTable(&domain.Message{}))

	_, err := env.svc.UnreadCount("amara")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)

	_, err = env.svc.ListMessages(conv.ID, "amara", nil, 0)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)

	err = env.svc.MarkRead(conv.ID, "amara", "")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, 0, env.notifier.readCount())
}

func TestListConversations_EmptyIsNotNil(t *testing.T) {
	env := setupService(t)

	rows, err := env.svc.ListConversations("amara")

	assert.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Len(t, rows, 0)
}
