package migration

import (
	"github.com/manuva/chat-backend/internal/domain"
	"gorm.io/gorm"
)

// Run creates the chat tables. The users table belongs to the main backend;
// AutoMigrate is a no-op for it when the schema already exists.
func Run(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Conversation{},
		&domain.Message{},
	)
}
