package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talk-n-share/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionClosed is returned when a message targets a session that is no longer active.
var ErrSessionClosed = errors.New("session is not active")

func (s *Service) CreateSession(ctx context.Context, session *models.MatchSession) error {
	return s.db.WithContext(ctx).Create(session).Error
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.MatchSession, error) {
	var session models.MatchSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// ActiveEphemeralSessionFor returns ErrNotFound when the user is free to match.
func (s *Service) ActiveEphemeralSessionFor(ctx context.Context, userID string) (*models.MatchSession, error) {
	var session models.MatchSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND kind = ?", models.StatusActive, models.KindEphemeral).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at DESC").
		First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *Service) FindActiveDirect(ctx context.Context, a, b string) (*models.MatchSession, error) {
	var session models.MatchSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND kind = ?", models.StatusActive, models.KindDirect).
		Where("(participant_a = ? AND participant_b = ?) OR (participant_a = ? AND participant_b = ?)", a, b, b, a).
		First(&session).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (s *Service) ListSessions(ctx context.Context, userID string, limit int) ([]models.MatchSession, error) {
	var sessions []models.MatchSession
	err := s.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// SetLike raises the like flag of slot and recomputes the reveal in the same
// statement. changed is false when the row was not in a state the like applies
// to; the current record is returned either way.
func (s *Service) SetLike(ctx context.Context, id string, slot models.Slot) (*models.MatchSession, bool, error) {
	if slot.LikeColumn() == "" {
		return nil, false, fmt.Errorf("set like: invalid slot %d", slot)
	}

	var updated models.MatchSession
	res := likeQuery(s.db.WithContext(ctx), &updated, id, slot)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &updated, true, nil
	}

	current, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// likeQuery relies on row-level locking: a concurrent like by the other
// participant re-evaluates against the committed row, so the second writer
// always sees the first flag when computing is_revealed.
func likeQuery(db *gorm.DB, dst *models.MatchSession, id string, slot models.Slot) *gorm.DB {
	return db.Model(dst).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ? AND kind = ?", id, models.StatusActive, models.KindEphemeral).
		Where(slot.LikeColumn()+" = ?", false).
		Updates(map[string]interface{}{
			slot.LikeColumn(): true,
			"is_revealed":     gorm.Expr(slot.OtherLikeColumn()),
			"version":         gorm.Expr("version + 1"),
		})
}

// EndSession moves an active session to ended. changed is false when it was
// already ended.
func (s *Service) EndSession(ctx context.Context, id, endedBy string) (*models.MatchSession, bool, error) {
	var updated models.MatchSession
	res := endQuery(s.db.WithContext(ctx), &updated, id, endedBy, time.Now())
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &updated, true, nil
	}

	current, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func endQuery(db *gorm.DB, dst *models.MatchSession, id, endedBy string, at time.Time) *gorm.DB {
	return db.Model(dst).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, models.StatusActive).
		Updates(map[string]interface{}{
			"status":   models.StatusEnded,
			"ended_at": at,
			"ended_by": endedBy,
			"version":  gorm.Expr("version + 1"),
		})
}

// AppendMessage inserts msg while holding a share lock on the session row, so
// a concurrent end cannot slip in between the status check and the insert.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.MatchSession
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "status").
			Where("id = ?", msg.SessionID).
			First(&session).Error
		if err != nil {
			return notFound(err)
		}
		if session.Status != models.StatusActive {
			return ErrSessionClosed
		}
		return tx.Create(msg).Error
	})
}

// ListMessages returns messages oldest first. A non-zero before pages backwards.
func (s *Service) ListMessages(ctx context.Context, sessionID string, before time.Time, limit int) ([]models.Message, error) {
	q := s.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}

	var messages []models.Message
	if err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
