package auth

import (
	"testing"
	"time"

	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/internal/migration"
	"github.com/manuva/chat-backend/internal/repository"
	"github.com/manuva/chat-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupVerifier(t *testing.T) (*JWTVerifier, *jwt.Manager, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	assert.NoError(t, err)

	sqlDB, err := db.DB()
	assert.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	assert.NoError(t, migration.Run(db))

	manager := jwt.NewManager("test-secret", time.Hour)
	verifier := NewJWTVerifier(manager, repository.NewUserRepository(db))
	return verifier, manager, db
}

func TestVerify_ResolvesActiveUser(t *testing.T) {
	verifier, manager, db := setupVerifier(t)
	err := db.Create(&domain.User{
		ID: "user-1", Name: "Amara", ProfileImg: "amara.png", Role: "buyer", IsActive: true,
	}).Error
	assert.NoError(t, err)

	token, err := manager.GenerateToken("user-1", "Amara", "buyer")
	assert.NoError(t, err)

	identity, err := verifier.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", identity.ID)
	assert.Equal(t, "Amara", identity.Name)
	assert.Equal(t, "amara.png", identity.Avatar)
	assert.Equal(t, "buyer", identity.Role)
}

func TestVerify_EmptyToken(t *testing.T) {
	verifier, _, _ := setupVerifier(t)

	_, err := verifier.Verify("")
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerify_MalformedToken(t *testing.T) {
	verifier, _, _ := setupVerifier(t)

	_, err := verifier.Verify("garbage")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_DeactivatedUser(t *testing.T) {
	verifier, manager, db := setupVerifier(t)
	err := db.Create(&domain.User{ID: "user-1", Name: "Amara", IsActive: true}).Error
	assert.NoError(t, err)
	err = db.Model(&domain.User{}).Where("id = ?", "user-1").Update("is_active", false).Error
	assert.NoError(t, err)

	token, err := manager.GenerateToken("user-1", "Amara", "buyer")
	assert.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}

func TestVerify_UnknownUser(t *testing.T) {
	verifier, manager, _ := setupVerifier(t)

	token, err := manager.GenerateToken("ghost", "Ghost", "buyer")
	assert.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}
