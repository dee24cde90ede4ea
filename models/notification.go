package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ChannelSocket   = "socket"
	ChannelDatabase = "database"
	ChannelEmail    = "email"
)

type Notification struct {
	Base
	UserID   string         `gorm:"size:36;not null;index" json:"user_id"`
	Type     string         `gorm:"size:50;not null;index" json:"type"`
	Title    string         `gorm:"not null" json:"title"`
	Message  string         `gorm:"type:text" json:"message"`
	Data     datatypes.JSON `json:"data,omitempty"`
	Channels StringList     `json:"channels"`
	Priority string         `gorm:"size:10;not null" json:"priority"`
	IsRead   bool           `gorm:"not null;index" json:"is_read"`
	ReadAt   *time.Time     `json:"read_at,omitempty"`
}
