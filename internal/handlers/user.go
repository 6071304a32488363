package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"talk-n-share/internal/middleware"
	"talk-n-share/internal/models"
	"talk-n-share/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type UserStore interface {
	EnsureProfile(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	Block(ctx context.Context, blockerID, blockedID string) error
	Unblock(ctx context.Context, blockerID, blockedID string) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkNotificationsRead(ctx context.Context, userID string) error
}

type PresenceTracker interface {
	Touch(ctx context.Context, userID string) error
}

type UserHandler struct {
	store    UserStore
	presence PresenceTracker
	log      *logrus.Logger
}

type UpdateProfileRequest struct {
	DisplayName      *string  `json:"display_name" binding:"omitempty,min=1,max=50"`
	AvatarURL        *string  `json:"avatar_url" binding:"omitempty,url"`
	Bio              *string  `json:"bio" binding:"omitempty,max=500"`
	Gender           *string  `json:"gender" binding:"omitempty,oneof=male female others"`
	Region           *string  `json:"region" binding:"omitempty,region"`
	ZodiacSign       *string  `json:"zodiac_sign" binding:"omitempty,zodiac_sign"`
	Interests        []string `json:"interests" binding:"omitempty,max=20,dive,min=1,max=30"`
	AllowMatching    *bool    `json:"allow_matching"`
	ShowOnlineStatus *bool    `json:"show_online_status"`
}

func NewUserHandler(store UserStore, presence PresenceTracker, log *logrus.Logger) *UserHandler {
	return &UserHandler{store: store, presence: presence, log: log}
}

func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.store.EnsureProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.EnsureProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.AvatarURL != nil {
		user.AvatarURL = *req.AvatarURL
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Gender != nil {
		user.Gender = models.Gender(*req.Gender)
	}
	if req.Region != nil {
		user.Region = *req.Region
	}
	if req.ZodiacSign != nil {
		user.ZodiacSign = *req.ZodiacSign
	}
	if req.Interests != nil {
		user.Interests = req.Interests
	}
	if req.AllowMatching != nil {
		user.AllowMatching = *req.AllowMatching
	}
	if req.ShowOnlineStatus != nil {
		user.ShowOnlineStatus = *req.ShowOnlineStatus
	}

	if err := h.store.UpdateProfile(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) BlockUser(c *gin.Context) {
	blockedID, ok := uuidParam(c, "user_id", "user ID")
	if !ok {
		return
	}
	userID := middleware.UserID(c)
	if blockedID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot block yourself"})
		return
	}

	if _, err := h.store.GetProfile(c.Request.Context(), blockedID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.store.Block(c.Request.Context(), userID, blockedID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User blocked"})
}

func (h *UserHandler) UnblockUser(c *gin.Context) {
	blockedID, ok := uuidParam(c, "user_id", "user ID")
	if !ok {
		return
	}
	err := h.store.Unblock(c.Request.Context(), middleware.UserID(c), blockedID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User is not blocked"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User unblocked"})
}

func (h *UserHandler) GetNotifications(c *gin.Context) {
	_, limit := pageParams(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	notifications, err := h.store.ListNotifications(c.Request.Context(), middleware.UserID(c), unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (h *UserHandler) MarkNotificationsRead(c *gin.Context) {
	if err := h.store.MarkNotificationsRead(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications marked as read"})
}

func (h *UserHandler) Heartbeat(c *gin.Context) {
	if err := h.presence.Touch(c.Request.Context(), middleware.UserID(c)); err != nil {
		h.log.WithError(err).WithField("user_id", middleware.UserID(c)).Warn("presence heartbeat failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Presence unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}
