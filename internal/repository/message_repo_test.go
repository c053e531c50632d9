package repository

import (
	"testing"
	"time"

	"github.com/manuva/chat-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestCreateWithActivity_BumpsConversation(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "amara", "Amara")
	seedUser(t, db, "bruno", "Bruno")
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	conv, err := convRepo.GetOrCreate("amara", "bruno")
	assert.NoError(t, err)
	before := conv.UpdatedAt

	time.Sleep(10 * time.Millisecond)

	msg := &domain.Message{ConversationID: conv.ID, SenderID: "amara", Content: "hello"}
	assert.NoError(t, msgRepo.CreateWithActivity(msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.IsRead)

	reloaded, err := convRepo.FindByID(conv.ID)
	assert.NoError(t, err)
	assert.True(t, reloaded.UpdatedAt.After(before))
}

func TestCreateWithActivity_MissingConversation(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "amara", "Amara")
	msgRepo := NewMessageRepository(db)

	msg := &domain.Message{ConversationID: "no-such-conversation", SenderID: "amara", Content: "hello"}
	err := msgRepo.CreateWithActivity(msg)

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// The transaction rolled back; no orphan message row
	var count int64
	assert.NoError(t, db.Model(&domain.Message{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestFindByConversation_PagesOldestFirst(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "amara", "Amara")
	seedUser(t, db, "bruno", "Bruno")
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	conv, err := convRepo.GetOrCreate("amara", "bruno")
	assert.NoError(t, err)

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i, content := range []string{"one", "two", "three", "four"} {
		seedMessage(t, db, conv.ID, "amara", content, base.Add(time.Duration(i)*time.Minute))
	}

	page, err := msgRepo.FindByConversation(conv.ID, nil, 2)
	assert.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "one", page[0].Content)
	assert.Equal(t, "two", page[1].Content)
	assert.Equal(t, "Amara", page[0].SenderName)

	// Cursor returns only messages strictly older
	cursor := base.Add(2 * time.Minute)
	older, err := msgRepo.FindByConversation(conv.ID, &cursor, 10)
	assert.NoError(t, err)
	assert.Len(t, older, 2)
	assert.Equal(t, "one", older[0].Content)
	assert.Equal(t, "two", older[1].Content)
}

func TestMarkConversationRead_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "amara", "Amara")
	seedUser(t, db, "bruno", "Bruno")
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	conv, err := convRepo.GetOrCreate("amara", "bruno")
	assert.NoError(t, err)

	base := time.Now().Add(-time.Minute)
	seedMessage(t, db, conv.ID, "amara", "hi", base)
	seedMessage(t, db, conv.ID, "amara", "there", base.Add(time.Second))
	seedMessage(t, db, conv.ID, "bruno", "yes?", base.Add(2*time.Second))

	// Bruno reading flips Amara's two messages, never his own
	changed, err := msgRepo.MarkConversationRead(conv.ID, "bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	changed, err = msgRepo.MarkConversationRead(conv.ID, "bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), changed)

	var unreadOwn int64
	err = db.Model(&domain.Message{}).
		Where("sender_id = ? AND is_read = ?", "bruno", false).
		Count(&unreadOwn).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(1), unreadOwn)
}

func TestUnreadCountForUser_SpansConversations(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "amara", "Amara")
	seedUser(t, db, "bruno", "Bruno")
	seedUser(t, db, "chioma", "Chioma")
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	withBruno, err := convRepo.GetOrCreate("amara", "bruno")
	assert.NoError(t, err)
	withChioma, err := convRepo.GetOrCreate("amara", "chioma")
	assert.NoError(t, err)

	base := time.Now().Add(-time.Minute)
	seedMessage(t, db, withBruno.ID, "bruno", "ping", base)
	seedMessage(t, db, withChioma.ID, "chioma", "pong", base.Add(time.Second))
	seedMessage(t, db, withChioma.ID, "amara", "own message", base.Add(2*time.Second))

	count, err := msgRepo.UnreadCountForUser("amara")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Bruno only sees Amara's unread in their shared thread, none yet
	count, err = msgRepo.UnreadCountForUser("bruno")
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
