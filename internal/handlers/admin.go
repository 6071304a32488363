package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"talk-n-share/internal/middleware"
	"talk-n-share/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AdminStore interface {
	Analytics(ctx context.Context, now time.Time) (*models.Analytics, error)
	ListReports(ctx context.Context, status string, page, limit int) ([]models.Report, int64, error)
	UpdateReportStatus(ctx context.Context, id uint, status string) error
	SetUserActive(ctx context.Context, id string, active bool) error
	RecordModeration(ctx context.Context, action *models.ModerationAction) error
}

type AdminHandler struct {
	store AdminStore
	svc   MatchService
	log   *logrus.Logger
}

type UpdateUserStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active suspended"`
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type UpdateReportStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending reviewed resolved dismissed"`
}

type EndSessionRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type ReportListResponse struct {
	Reports []models.Report `json:"reports"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
}

func NewAdminHandler(store AdminStore, svc MatchService, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{store: store, svc: svc, log: log}
}

func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	analytics, err := h.store.Analytics(c.Request.Context(), time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": analytics})
}

func (h *AdminHandler) GetReports(c *gin.Context) {
	page, limit := pageParams(c)
	status := c.Query("status")
	switch status {
	case "", models.ReportPending, models.ReportReviewed, models.ReportResolved, models.ReportDismissed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report status"})
		return
	}

	reports, total, err := h.store.ListReports(c.Request.Context(), status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReportListResponse{Reports: reports, Total: total, Page: page, Limit: limit})
}

func (h *AdminHandler) UpdateReportStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}
	var req UpdateReportStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.UpdateReportStatus(c.Request.Context(), uint(id), req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report status updated"})
}

// UpdateUserStatus suspends or reinstates a user. Suspended users drop out of
// candidate pools and cannot request matches.
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	userID, ok := uuidParam(c, "id", "user ID")
	if !ok {
		return
	}
	var req UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := req.Status == "active"
	if err := h.store.SetUserActive(c.Request.Context(), userID, active); err != nil {
		respondError(c, err)
		return
	}

	action := models.ActionSuspendUser
	if active {
		action = models.ActionReinstateUser
	}
	if err := h.store.RecordModeration(c.Request.Context(), &models.ModerationAction{
		ActorID:  middleware.UserID(c),
		Action:   action,
		TargetID: userID,
		Reason:   req.Reason,
	}); err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("failed to record moderation action")
	}

	h.log.WithFields(logrus.Fields{
		"admin_id": middleware.UserID(c),
		"user_id":  userID,
		"status":   req.Status,
	}).Info("user status changed")
	c.JSON(http.StatusOK, gin.H{"message": "User status updated"})
}

func (h *AdminHandler) EndSession(c *gin.Context) {
	sessionID, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	var req EndSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	session, err := h.svc.AdminEnd(c.Request.Context(), sessionID, middleware.UserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session})
}
