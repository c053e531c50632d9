package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/manuva/chat-backend/internal/auth"
	"github.com/manuva/chat-backend/internal/handler"
	"github.com/manuva/chat-backend/internal/middleware"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WSHandler,
	verifier auth.CredentialVerifier,
) {
	// Conversation query API (all endpoints require an authenticated caller)
	chat := router.Group("/api/chat", middleware.Auth(verifier))
	{
		chat.GET("/conversations", chatHandler.GetConversations)
		chat.POST("/conversations", chatHandler.CreateConversation)
		chat.GET("/conversations/:id/messages", chatHandler.GetMessages)
		chat.GET("/unread-count", chatHandler.GetUnreadCount)
	}

	// Real-time gateway; the handshake does its own credential check
	router.GET("/ws/chat", wsHandler.Connect)
}
