package repository

import (
	"github.com/manuva/chat-backend/internal/domain"
	"gorm.io/gorm"
)

// UserRepository read-only access to the marketplace user directory
type UserRepository interface {
	FindByID(id string) (*domain.User, error)
	FindActiveByID(id string) (*domain.User, error)
	ExistsByID(id string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByID finds a user by ID
func (r *userRepository) FindByID(id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindActiveByID finds a user by ID, excluding deactivated accounts
func (r *userRepository) FindActiveByID(id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByID reports whether a user row exists
func (r *userRepository) ExistsByID(id string) (bool, error) {
	var count int64
	err := r.db.Model(&domain.User{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
