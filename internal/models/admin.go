package models

import "time"

// Analytics is the moderator snapshot of match activity.
type Analytics struct {
	ActiveSessions   int64     `json:"active_sessions"`
	RevealedSessions int64     `json:"revealed_sessions"`
	SessionsToday    int64     `json:"sessions_today"`
	EndedToday       int64     `json:"ended_today"`
	MessagesToday    int64     `json:"messages_today"`
	PendingReports   int64     `json:"pending_reports"`
	SuspendedUsers   int64     `json:"suspended_users"`
	Date             time.Time `json:"date"`
}

const (
	ActionEndSession    = "end_session"
	ActionSuspendUser   = "suspend_user"
	ActionReinstateUser = "reinstate_user"
)

// ModerationAction is the audit trail of what moderators did and to what.
type ModerationAction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ActorID   string    `json:"actor_id" gorm:"type:uuid;not null;index"`
	Action    string    `json:"action" gorm:"not null"`
	TargetID  string    `json:"target_id" gorm:"not null"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
