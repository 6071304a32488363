package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"talk-n-share/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// editableProfileColumns are the only profile columns a user may change.
var editableProfileColumns = []string{
	"display_name", "avatar_url", "bio", "gender", "region",
	"zodiac_sign", "zodiac_group", "interests", "allow_matching", "show_online_status",
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *Service) GetProfile(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// EnsureProfile returns the profile for id, creating a default one on first use.
func (s *Service) EnsureProfile(ctx context.Context, id string) (*models.User, error) {
	user := models.NewUser(id)
	if err := s.db.WithContext(ctx).
		Where(models.User{ID: id}).
		Attrs(user).
		FirstOrCreate(user).Error; err != nil {
		return nil, fmt.Errorf("ensure profile %s: %w", id, err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, user *models.User) error {
	user.ZodiacGroup = models.ZodiacGroupOf(user.ZodiacSign)
	res := s.db.WithContext(ctx).
		Model(&models.User{ID: user.ID}).
		Select(editableProfileColumns).
		Updates(user)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_seen_at", at).Error
}

func (s *Service) SetUserActive(ctx context.Context, id string, active bool) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CandidatePool returns up to limit profiles that may be paired with the
// requester, best filter matches first, then most recently seen.
func (s *Service) CandidatePool(ctx context.Context, requesterID string, filter models.MatchFilter, limit int) ([]models.User, error) {
	var users []models.User
	if err := s.poolQuery(s.db.WithContext(ctx), requesterID, filter, limit).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("candidate pool: %w", err)
	}
	return users, nil
}

func (s *Service) poolQuery(db *gorm.DB, requesterID string, filter models.MatchFilter, limit int) *gorm.DB {
	q := db.Model(&models.User{}).
		Where("users.id <> ?", requesterID).
		Where("users.is_active = ? AND users.allow_matching = ?", true, true).
		Where("users.id NOT IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.BlockedUser{}).Select("blocked_id").Where("blocker_id = ?", requesterID)).
		Where("users.id NOT IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.BlockedUser{}).Select("blocker_id").Where("blocked_id = ?", requesterID)).
		Where(`NOT EXISTS (SELECT 1 FROM match_sessions ms
			WHERE ms.status = ? AND ms.kind = ?
			AND (ms.participant_a = users.id OR ms.participant_b = users.id))`,
			models.StatusActive, models.KindEphemeral)

	// A single ORDER BY clause: GORM drops an expression when merging a second one.
	order := "users.last_seen_at DESC NULLS LAST"
	var vars []interface{}
	if score, scoreVars := scoreExpr(filter); score != "" {
		order = "(" + score + ") DESC, " + order
		vars = scoreVars
	}
	return q.Order(clause.OrderBy{Expression: clause.Expr{
		SQL:                order,
		Vars:               vars,
		WithoutParentheses: true,
	}}).Limit(limit)
}

// scoreExpr mirrors MatchFilter.Score in SQL.
func scoreExpr(filter models.MatchFilter) (string, []interface{}) {
	var parts []string
	var vars []interface{}
	add := func(column, value string) {
		if value == "" || value == models.Any {
			return
		}
		parts = append(parts, "CASE WHEN users."+column+" = ? THEN 1 ELSE 0 END")
		vars = append(vars, value)
	}
	add("gender", filter.Gender)
	add("region", filter.Region)
	add("zodiac_group", filter.ZodiacGroup)
	return strings.Join(parts, " + "), vars
}

func (s *Service) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.BlockedUser{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

func (s *Service) Block(ctx context.Context, blockerID, blockedID string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.BlockedUser{BlockerID: blockerID, BlockedID: blockedID}).Error
}

func (s *Service) Unblock(ctx context.Context, blockerID, blockedID string) error {
	res := s.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.BlockedUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) CreateReport(ctx context.Context, report *models.Report) error {
	if report.Status == "" {
		report.Status = models.ReportPending
	}
	return s.db.WithContext(ctx).Create(report).Error
}

func (s *Service) ListReports(ctx context.Context, status string, page, limit int) ([]models.Report, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Report{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.Report
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&reports).Error
	return reports, total, err
}

func (s *Service) UpdateReportStatus(ctx context.Context, id uint, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.Data == "" {
		n.Data = "{}"
	}
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Service) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	err := q.Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Service) MarkNotificationsRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

func (s *Service) RecordModeration(ctx context.Context, action *models.ModerationAction) error {
	return s.db.WithContext(ctx).Create(action).Error
}

func (s *Service) Analytics(ctx context.Context, now time.Time) (*models.Analytics, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	db := s.db.WithContext(ctx)
	a := &models.Analytics{Date: today}

	counts := []struct {
		dst   *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&a.ActiveSessions, &models.MatchSession{}, "status = ?", []interface{}{models.StatusActive}},
		{&a.RevealedSessions, &models.MatchSession{}, "is_revealed = ?", []interface{}{true}},
		{&a.SessionsToday, &models.MatchSession{}, "created_at >= ?", []interface{}{today}},
		{&a.EndedToday, &models.MatchSession{}, "ended_at >= ?", []interface{}{today}},
		{&a.MessagesToday, &models.Message{}, "created_at >= ?", []interface{}{today}},
		{&a.PendingReports, &models.Report{}, "status = ?", []interface{}{models.ReportPending}},
		{&a.SuspendedUsers, &models.User{}, "is_active = ?", []interface{}{false}},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("analytics: %w", err)
		}
	}
	return a, nil
}
