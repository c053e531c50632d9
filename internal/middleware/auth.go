package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/manuva/chat-backend/internal/auth"
	"github.com/manuva/chat-backend/internal/common"
)

// Auth authenticates requests through the credential verifier and attaches
// the resolved identity to the context.
func Auth(verifier auth.CredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			common.ErrorResponse(c, 401, "Authentication required", nil)
			c.Abort()
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				common.ErrorResponse(c, 401, "Invalid authentication token", err)
			} else {
				common.ErrorResponse(c, 401, "Authentication required", err)
			}
			c.Abort()
			return
		}

		c.Set("userID", identity.ID)
		c.Set("userName", identity.Name)
		c.Set("userRole", identity.Role)

		c.Next()
	}
}

// extractToken reads the bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}
	if str, ok := userID.(string); ok {
		return str
	}
	return ""
}

// GetUserName extracts the display name from context
func GetUserName(c *gin.Context) string {
	name, exists := c.Get("userName")
	if !exists {
		return ""
	}
	if str, ok := name.(string); ok {
		return str
	}
	return ""
}
