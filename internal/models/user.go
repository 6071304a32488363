package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOthers Gender = "others"
)

// Regions is the fixed list a profile region and a region filter must come from.
var Regions = []string{
	"north_america", "south_america", "europe", "africa", "middle_east",
	"south_asia", "east_asia", "southeast_asia", "oceania",
}

type ZodiacGroup string

const (
	ZodiacFire  ZodiacGroup = "fire"
	ZodiacEarth ZodiacGroup = "earth"
	ZodiacAir   ZodiacGroup = "air"
	ZodiacWater ZodiacGroup = "water"
)

var zodiacGroups = map[string]ZodiacGroup{
	"aries": ZodiacFire, "leo": ZodiacFire, "sagittarius": ZodiacFire,
	"taurus": ZodiacEarth, "virgo": ZodiacEarth, "capricorn": ZodiacEarth,
	"gemini": ZodiacAir, "libra": ZodiacAir, "aquarius": ZodiacAir,
	"cancer": ZodiacWater, "scorpio": ZodiacWater, "pisces": ZodiacWater,
}

// ZodiacGroupOf returns the element of a sign, or "" for an unknown sign.
func ZodiacGroupOf(sign string) ZodiacGroup {
	return zodiacGroups[sign]
}

func IsRegion(region string) bool {
	for _, r := range Regions {
		if r == region {
			return true
		}
	}
	return false
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the profile the candidate selector reads. Accounts themselves live
// with the identity provider; the row is created on first authenticated use.
type User struct {
	ID               string         `json:"id" gorm:"type:uuid;primaryKey"`
	DisplayName      string         `json:"display_name"`
	AvatarURL        string         `json:"avatar_url,omitempty"`
	Bio              string         `json:"bio,omitempty"`
	Gender           Gender         `json:"gender,omitempty" gorm:"index"`
	Region           string         `json:"region,omitempty" gorm:"index"`
	ZodiacSign       string         `json:"zodiac_sign,omitempty"`
	ZodiacGroup      ZodiacGroup    `json:"zodiac_group,omitempty" gorm:"index"`
	Interests        pq.StringArray `json:"interests,omitempty" gorm:"type:text[]"`
	AllowMatching    bool           `json:"allow_matching"`
	ShowOnlineStatus bool           `json:"show_online_status"`
	IsActive         bool           `json:"is_active"`
	Role             string         `json:"-" gorm:"not null"`
	LastSeenAt       *time.Time     `json:"last_seen_at,omitempty" gorm:"index"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-" gorm:"index"`
}

// NewUser returns a profile with the defaults a freshly provisioned account gets.
func NewUser(id string) *User {
	return &User{
		ID:               id,
		AllowMatching:    true,
		ShowOnlineStatus: true,
		IsActive:         true,
		Role:             RoleUser,
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// BeforeSave keeps the derived zodiac group in step with the sign.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.ZodiacGroup = ZodiacGroupOf(u.ZodiacSign)
	return nil
}

type BlockedUser struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BlockerID string    `json:"blocker_id" gorm:"type:uuid;not null;uniqueIndex:idx_block_pair"`
	BlockedID string    `json:"blocked_id" gorm:"type:uuid;not null;uniqueIndex:idx_block_pair"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ReportPending   = "pending"
	ReportReviewed  = "reviewed"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

type Report struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ReporterID  string    `json:"reporter_id" gorm:"type:uuid;not null;index"`
	ReportedID  string    `json:"reported_id" gorm:"type:uuid;not null;index"`
	SessionID   *string   `json:"session_id,omitempty" gorm:"type:uuid"`
	Reason      string    `json:"reason" gorm:"not null"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status" gorm:"not null;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
