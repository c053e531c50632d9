package auth

import (
	"errors"

	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/repository"
	"github.com/manuva/chat-backend/pkg/jwt"
	"gorm.io/gorm"
)

// Identity is a resolved, authenticated user
type Identity struct {
	ID     string
	Name   string
	Avatar string
	Role   string
}

// CredentialVerifier resolves an opaque credential to a user identity.
// The real implementation checks the marketplace JWT and user directory;
// tests substitute a fake.
type CredentialVerifier interface {
	Verify(token string) (*Identity, error)
}

// JWTVerifier verifies marketplace access tokens and confirms the account
// is still active in the user directory.
type JWTVerifier struct {
	manager *jwt.Manager
	users   repository.UserRepository
}

// NewJWTVerifier creates a new JWTVerifier
func NewJWTVerifier(manager *jwt.Manager, users repository.UserRepository) *JWTVerifier {
	return &JWTVerifier{manager: manager, users: users}
}

// Verify parses the token and loads the active user behind it
func (v *JWTVerifier) Verify(token string) (*Identity, error) {
	if token == "" {
		return nil, common.ErrUnauthenticated
	}

	claims, err := v.manager.VerifyToken(token)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	user, err := v.users.FindActiveByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, err
	}

	return &Identity{
		ID:     user.ID,
		Name:   user.Name,
		Avatar: user.ProfileImg,
		Role:   user.Role,
	}, nil
}
