package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/callwire/callwire-server/internal/service/chats"
	"github.com/callwire/callwire-server/internal/store"
)

// ChatsHandlers provides HTTP handlers for chat management endpoints.
type ChatsHandlers struct {
	service *chats.Service
	log     *zerolog.Logger
}

// NewChatsHandlers creates a new chats handlers instance.
func NewChatsHandlers(svc *chats.Service, logger *zerolog.Logger) *ChatsHandlers {
	return &ChatsHandlers{
		service: svc,
		log:     logger,
	}
}

// CreateChatRequest represents the request body for creating a group chat.
type CreateChatRequest struct {
	Name string `json:"name" binding:"required"`
}

// OpenDirectChatRequest represents the request body for opening a direct chat.
type OpenDirectChatRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// AddMemberRequest represents the request body for adding a chat member.
type AddMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

// ChatResponse represents a chat in API responses.
type ChatResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type"`
	CreatedBy int64  `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

func chatToResponse(chat *store.Chat) ChatResponse {
	return ChatResponse{
		ID:        chat.ID,
		Name:      chat.Name,
		Type:      string(chat.Type),
		CreatedBy: chat.CreatedBy,
		CreatedAt: chat.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// CreateChat handles creating a group chat.
// POST /api/chats
func (h *ChatsHandlers) CreateChat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create chat request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chat, err := h.service.CreateGroupChat(c.Request.Context(), uid, req.Name)
	if err != nil {
		if errors.Is(err, chats.ErrEmptyName) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "chat name is required"})
			return
		}
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to create chat")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("chat_id", chat.ID).Int64("user_id", uid).Msg("chat created")
	c.JSON(http.StatusCreated, chatToResponse(chat))
}

// OpenDirectChat handles opening (or finding) a direct chat with another user.
// POST /api/chats/direct
func (h *ChatsHandlers) OpenDirectChat(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req OpenDirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid open direct chat request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	chat, err := h.service.OpenDirectChat(c.Request.Context(), uid, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, chats.ErrCannotChatSelf):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot open a direct chat with yourself"})
		case errors.Is(err, chats.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("user_id", uid).Int64("other_user_id", req.UserID).Msg("failed to open direct chat")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("chat_id", chat.ID).Int64("user_id", uid).Int64("other_user_id", req.UserID).Msg("direct chat opened")
	c.JSON(http.StatusOK, chatToResponse(chat))
}

// ListChats handles listing the current user's chats.
// GET /api/chats
func (h *ChatsHandlers) ListChats(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatsList, err := h.service.ListChats(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list chats")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]ChatResponse, 0, len(chatsList))
	for _, chat := range chatsList {
		response = append(response, chatToResponse(chat))
	}
	c.JSON(http.StatusOK, response)
}

// AddMember handles adding a user to a group chat.
// POST /api/chats/:id/members
func (h *ChatsHandlers) AddMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid add member request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.service.AddMember(c.Request.Context(), uid, chatID, req.UserID); err != nil {
		switch {
		case errors.Is(err, chats.ErrChatNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
		case errors.Is(err, chats.ErrNotMember):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this chat"})
		case errors.Is(err, chats.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Int64("chat_id", chatID).Int64("user_id", req.UserID).Msg("failed to add member")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("chat_id", chatID).Int64("user_id", req.UserID).Msg("member added")
	c.JSON(http.StatusOK, gin.H{"message": "member added"})
}

// ListMembers handles listing members of a chat the user belongs to.
// GET /api/chats/:id/members
func (h *ChatsHandlers) ListMembers(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid chat id"})
		return
	}

	isMember, err := h.service.IsMember(c.Request.Context(), uid, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isMember {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this chat"})
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}
