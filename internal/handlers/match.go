package handlers

import (
	"errors"
	"io"
	"net/http"

	"talk-n-share/internal/middleware"
	"talk-n-share/internal/models"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	svc MatchService
}

type CreateDirectRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
}

type ReportSessionRequest struct {
	Reason      string `json:"reason" binding:"required,oneof=spam harassment inappropriate underage other"`
	Description string `json:"description" binding:"omitempty,max=1000"`
}

func NewMatchHandler(svc MatchService) *MatchHandler {
	return &MatchHandler{svc: svc}
}

func (h *MatchHandler) RequestMatch(c *gin.Context) {
	// an empty body means every filter is "any"
	var filter models.MatchFilter
	if err := c.ShouldBindJSON(&filter); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.svc.RequestMatch(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": view})
}

func (h *MatchHandler) CreateDirect(c *gin.Context) {
	var req CreateDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, created, err := h.svc.CreateDirect(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"session": view})
}

func (h *MatchHandler) ListSessions(c *gin.Context) {
	_, limit := pageParams(c)
	views, err := h.svc.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": views})
}

func (h *MatchHandler) GetSession(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	view, err := h.svc.Session(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

// Like takes no body: the caller's seat is the only flag that can change.
func (h *MatchHandler) Like(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	view, err := h.svc.Like(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

func (h *MatchHandler) End(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	view, err := h.svc.End(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": view})
}

func (h *MatchHandler) Report(c *gin.Context) {
	id, ok := uuidParam(c, "id", "session ID")
	if !ok {
		return
	}
	var req ReportSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.svc.ReportPartner(c.Request.Context(), id, middleware.UserID(c), req.Reason, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report submitted", "report_id": report.ID})
}
