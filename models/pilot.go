package models

import (
	"time"

	"gorm.io/gorm"
)

// PilotProfile is a local snapshot of the profile service's user, keyed by the
// same external id the gateway forwards as X-User-ID. Populated by the sync worker.
type PilotProfile struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string    `gorm:"uniqueIndex;not null" json:"external_user_id"`
	Username       string    `gorm:"index;not null" json:"username"`
	Handle         string    `gorm:"index;not null" json:"handle"` // url-safe username, used in leaderboard views
	AvatarURL      *string   `json:"avatar_url,omitempty"`
	IsBanned       bool      `json:"is_banned" gorm:"default:false"` // banned pilots cannot start new matches
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PilotProfile) TableName() string { return "pilot_profiles" }
