package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"talk-n-share/internal/match"
	"talk-n-share/internal/models"
	"talk-n-share/internal/services"
	"talk-n-share/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MatchService is the session flow the HTTP layer drives.
type MatchService interface {
	RequestMatch(ctx context.Context, requesterID string, filter models.MatchFilter) (*match.SessionView, error)
	CreateDirect(ctx context.Context, requesterID, otherID string) (*match.SessionView, bool, error)
	List(ctx context.Context, viewerID string, limit int) ([]match.SessionView, error)
	Session(ctx context.Context, sessionID, viewerID string) (*match.SessionView, error)
	Like(ctx context.Context, sessionID, userID string) (*match.SessionView, error)
	End(ctx context.Context, sessionID, userID string) (*match.SessionView, error)
	AdminEnd(ctx context.Context, sessionID, adminID, reason string) (*models.MatchSession, error)
	SendMessage(ctx context.Context, sessionID, senderID string, msg models.Message) (*match.MessageView, error)
	Messages(ctx context.Context, sessionID, viewerID string, before time.Time, limit int) ([]match.MessageView, error)
	ReportPartner(ctx context.Context, sessionID, reporterID, reason, description string) (*models.Report, error)
}

var registerOnce sync.Once

// RegisterValidators adds the domain binding tags to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("region", func(fl validator.FieldLevel) bool {
			return models.IsRegion(fl.Field().String())
		})
		_ = v.RegisterValidation("region_or_any", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == models.Any || models.IsRegion(s)
		})
		_ = v.RegisterValidation("zodiac_sign", func(fl validator.FieldLevel) bool {
			return models.ZodiacGroupOf(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("attachment_key", func(fl validator.FieldLevel) bool {
			return services.ValidAttachmentKey(fl.Field().String())
		})
	})
}

// respondError maps domain errors onto status codes.
func respondError(c *gin.Context, err error) {
	status, body := http.StatusInternalServerError, gin.H{"error": "Internal server error"}

	switch {
	case errors.Is(err, match.ErrNoCandidateFound):
		status, body = http.StatusNotFound, gin.H{"error": err.Error(), "retry": true}
	case errors.Is(err, match.ErrSessionCreateFailed):
		status, body = http.StatusServiceUnavailable, gin.H{"error": match.ErrSessionCreateFailed.Error(), "retry": true}
	case errors.Is(err, match.ErrSessionNotFound),
		errors.Is(err, match.ErrUserNotFound),
		errors.Is(err, storage.ErrNotFound):
		status, body = http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, match.ErrNotParticipant),
		errors.Is(err, match.ErrBlocked),
		errors.Is(err, match.ErrUserInactive):
		status, body = http.StatusForbidden, gin.H{"error": err.Error()}
	case errors.Is(err, match.ErrMutationRejected),
		errors.Is(err, match.ErrSessionEnded),
		errors.Is(err, match.ErrAlreadyInSession):
		status, body = http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, match.ErrSelfSession),
		errors.Is(err, match.ErrInvalidMessage):
		status, body = http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, body = http.StatusRequestTimeout, gin.H{"error": "Request cancelled"}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

// uuidParam reads a UUID path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name, label string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + label})
		return "", false
	}
	return id.String(), true
}

func pageParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
