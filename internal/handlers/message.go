package handlers

import (
	"net/http"
	"time"

	"talk-n-share/internal/middleware"
	"talk-n-share/internal/models"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	svc MatchService
}

type SendMessageRequest struct {
	Content       string `json:"content" binding:"required_without=AttachmentKey,max=4000"`
	MessageType   string `json:"message_type" binding:"omitempty,oneof=text image emoji"`
	AttachmentKey string `json:"attachment_key" binding:"omitempty,attachment_key"`
}

func NewMessageHandler(svc MatchService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

func (h *MessageHandler) GetMessages(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	_, limit := pageParams(c)

	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid before timestamp"})
			return
		}
		before = parsed
	}

	messages, err := h.svc.Messages(c.Request.Context(), id, middleware.UserID(c), before, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.SendMessage(c.Request.Context(), id, middleware.UserID(c), models.Message{
		Content:       req.Content,
		MessageType:   req.MessageType,
		AttachmentKey: req.AttachmentKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}
