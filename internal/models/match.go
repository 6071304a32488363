package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionKind string

const (
	KindDirect    SessionKind = "direct"
	KindEphemeral SessionKind = "ephemeral_match"
)

func (k SessionKind) Valid() bool {
	return k == KindDirect || k == KindEphemeral
}

type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusEnded  SessionStatus = "ended"
)

func (s SessionStatus) Valid() bool {
	return s == StatusActive || s == StatusEnded
}

// Slot is the positional seat a user occupies in a session.
type Slot int

const (
	SlotNone Slot = iota
	SlotA
	SlotB
)

// LikeColumn names the only column the occupant of the slot may write.
func (s Slot) LikeColumn() string {
	switch s {
	case SlotA:
		return "liked_by_a"
	case SlotB:
		return "liked_by_b"
	}
	return ""
}

// OtherLikeColumn is the column of the opposite seat.
func (s Slot) OtherLikeColumn() string {
	switch s {
	case SlotA:
		return "liked_by_b"
	case SlotB:
		return "liked_by_a"
	}
	return ""
}

var (
	ErrInvalidParticipants = errors.New("session needs two distinct participants")
	ErrInvalidKind         = errors.New("invalid session kind")
	ErrInvalidStatus       = errors.New("invalid session status")
	ErrRevealMismatch      = errors.New("reveal flag does not match like flags")
)

// MatchSession pairs two users. is_revealed is persisted but always equals
// liked_by_a AND liked_by_b; the CHECK constraints keep the table honest.
type MatchSession struct {
	ID           string        `json:"id" gorm:"type:uuid;primaryKey"`
	ParticipantA string        `json:"participant_a" gorm:"type:uuid;not null;index;check:chk_match_sessions_pair,participant_a <> participant_b"`
	ParticipantB string        `json:"participant_b" gorm:"type:uuid;not null;index"`
	Kind         SessionKind   `json:"kind" gorm:"type:varchar(32);not null"`
	Status       SessionStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	LikedByA     bool          `json:"liked_by_a" gorm:"not null"`
	LikedByB     bool          `json:"liked_by_b" gorm:"not null"`
	IsRevealed   bool          `json:"is_revealed" gorm:"not null;check:chk_match_sessions_reveal,is_revealed = (liked_by_a AND liked_by_b)"`
	Version      int64         `json:"version" gorm:"not null"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	EndedBy      *string       `json:"ended_by,omitempty" gorm:"type:uuid"`
}

// NewMatchSession builds a fresh active record with both flags down.
func NewMatchSession(a, b string, kind SessionKind) *MatchSession {
	return &MatchSession{
		ID:           uuid.New().String(),
		ParticipantA: a,
		ParticipantB: b,
		Kind:         kind,
		Status:       StatusActive,
		Version:      1,
	}
}

func (s *MatchSession) Validate() error {
	if s.ParticipantA == "" || s.ParticipantB == "" || s.ParticipantA == s.ParticipantB {
		return ErrInvalidParticipants
	}
	if !s.Kind.Valid() {
		return ErrInvalidKind
	}
	if !s.Status.Valid() {
		return ErrInvalidStatus
	}
	if s.IsRevealed != (s.LikedByA && s.LikedByB) {
		return ErrRevealMismatch
	}
	return nil
}

func (s *MatchSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return s.Validate()
}

func (s *MatchSession) SlotOf(userID string) Slot {
	switch userID {
	case "":
		return SlotNone
	case s.ParticipantA:
		return SlotA
	case s.ParticipantB:
		return SlotB
	}
	return SlotNone
}

func (s *MatchSession) HasParticipant(userID string) bool {
	return s.SlotOf(userID) != SlotNone
}

// PartnerOf returns the other participant, or "" when userID is not seated.
func (s *MatchSession) PartnerOf(userID string) string {
	switch s.SlotOf(userID) {
	case SlotA:
		return s.ParticipantB
	case SlotB:
		return s.ParticipantA
	}
	return ""
}

func (s *MatchSession) LikedBy(slot Slot) bool {
	switch slot {
	case SlotA:
		return s.LikedByA
	case SlotB:
		return s.LikedByB
	}
	return false
}

// IdentityHidden reports whether participants must stay anonymous to each other.
func (s *MatchSession) IdentityHidden() bool {
	return s.Kind == KindEphemeral && !s.IsRevealed
}

const (
	MessageText  = "text"
	MessageImage = "image"
	MessageEmoji = "emoji"
)

type Message struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	SessionID     string    `json:"session_id" gorm:"type:uuid;not null;index:idx_messages_session_created"`
	SenderID      string    `json:"sender_id" gorm:"type:uuid;not null"`
	Content       string    `json:"content"`
	MessageType   string    `json:"message_type" gorm:"type:varchar(16);not null"`
	AttachmentKey string    `json:"attachment_key,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"index:idx_messages_session_created"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.MessageType == "" {
		m.MessageType = MessageText
	}
	return nil
}

const (
	NotificationMatch  = "match"
	NotificationReveal = "reveal"
	NotificationDirect = "direct"
)

type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:uuid;not null;index"`
	Type      string    `json:"type" gorm:"not null"`
	Title     string    `json:"title" gorm:"not null"`
	Body      string    `json:"body" gorm:"not null"`
	Data      string    `json:"data" gorm:"type:jsonb"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
