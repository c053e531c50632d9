package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/manuva/chat-backend/internal/common"
	"github.com/manuva/chat-backend/internal/domain"
	"github.com/manuva/chat-backend/internal/middleware"
	"github.com/manuva/chat-backend/internal/service"
)

// ChatHandler handles conversation query API requests
type ChatHandler struct {
	service service.ChatService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service service.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// GetConversations handles GET /api/chat/conversations
// @Summary List the caller's conversations
// @Tags chat
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.ConversationResponse}
// @Router /api/chat/conversations [get]
func (h *ChatHandler) GetConversations(c *gin.Context) {
	viewerID := middleware.GetUserID(c)

	conversations, err := h.service.ListConversations(viewerID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch conversations", err)
		return
	}

	common.SuccessResponse(c, conversations, &common.Meta{Total: int64(len(conversations))})
}

// CreateConversation handles POST /api/chat/conversations
// @Summary Start or fetch the conversation with a seller
// @Tags chat
// @Accept json
// @Produce json
// @Param request body domain.CreateConversationRequest true "Seller to contact"
// @Success 201 {object} common.APIResponse{data=domain.Conversation}
// @Router /api/chat/conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	buyerID := middleware.GetUserID(c)

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "seller_id is required", err)
		return
	}

	conv, err := h.service.GetOrCreateConversation(buyerID, req.SellerID)
	if err != nil {
		common.ErrorResponse(c, common.StatusFromError(err), conversationErrorMessage(err), err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: conv})
}

// GetMessages handles GET /api/chat/conversations/:id/messages
// @Summary Fetch paged message history (marks messages read)
// @Tags chat
// @Produce json
// @Param id path string true "Conversation ID"
// @Param limit query int false "Page size (default 50, max 100)"
// @Param before query string false "RFC3339 cursor; only messages strictly older"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /api/chat/conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	viewerID := middleware.GetUserID(c)
	conversationID := c.Param("id")

	limit := 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid before cursor", err)
			return
		}
		before = &t
	}

	messages, err := h.service.ListMessages(conversationID, viewerID, before, limit)
	if err != nil {
		common.ErrorResponse(c, common.StatusFromError(err), conversationErrorMessage(err), err)
		return
	}

	common.SuccessResponse(c, messages, &common.Meta{Limit: limit, Total: int64(len(messages))})
}

// GetUnreadCount handles GET /api/chat/unread-count
// @Summary Total unread messages across the caller's conversations
// @Tags chat
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /api/chat/unread-count [get]
func (h *ChatHandler) GetUnreadCount(c *gin.Context) {
	viewerID := middleware.GetUserID(c)

	count, err := h.service.UnreadCount(viewerID)
	if err != nil {
		common.ErrorResponse(c, http.StatusInternalServerError, "Failed to fetch unread count", err)
		return
	}

	common.SuccessResponse(c, gin.H{"count": count}, nil)
}

// conversationErrorMessage maps business errors to stable API messages
func conversationErrorMessage(err error) string {
	switch err {
	case common.ErrSelfConversation:
		return "Cannot chat with yourself"
	case common.ErrInvalidInput:
		return "seller_id is required"
	case common.ErrNotFound:
		return "Seller not found"
	case common.ErrConversationNotFound:
		return "Conversation not found"
	case common.ErrAccessDenied:
		return "Access denied"
	default:
		return "Request failed"
	}
}
