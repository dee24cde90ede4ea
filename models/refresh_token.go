package models

import (
	"time"
)

type RefreshToken struct {
	Base
	UserID    string    `gorm:"size:36;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}
