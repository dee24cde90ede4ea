package models

import (
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleLevels = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// AtLeast reports whether r ranks at or above min in the user < moderator < admin hierarchy.
func (r Role) AtLeast(min Role) bool {
	return roleLevels[r] >= roleLevels[min]
}

func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

const (
	VerificationUnverified = "unverified"
	VerificationVerified   = "verified"
)

type User struct {
	Base
	Email                 string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash          string     `gorm:"not null" json:"-"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	StudentID             string     `gorm:"index" json:"student_id"`
	University            string     `json:"university"`
	Major                 string     `json:"major"`
	Bio                   string     `json:"bio"`
	Phone                 string     `json:"phone"`
	AvatarURL             string     `json:"avatar_url"`
	GoogleID              *string    `gorm:"uniqueIndex" json:"-"`
	Role                  Role       `gorm:"size:20;not null" json:"role"`
	Points                int64      `gorm:"not null;default:0" json:"points"`
	IsActive              bool       `gorm:"not null" json:"is_active"`
	IsVerified            bool       `gorm:"not null" json:"is_verified"`
	VerificationStatus    string     `gorm:"size:20;not null" json:"verification_status"`
	VerificationToken     *string    `gorm:"index" json:"-"`
	VerificationExpiresAt *time.Time `json:"-"`
	LastLoginAt           *time.Time `json:"last_login_at"`
	LastLoginDate         *time.Time `json:"last_login_date"`
	ConsecutiveLoginDays  int        `gorm:"not null;default:0" json:"consecutive_login_days"`
}

func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// PublicProfile is the view of a user exposed to other users.
type PublicProfile struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	University string `json:"university"`
	Major      string `json:"major"`
	Bio        string `json:"bio"`
	AvatarURL  string `json:"avatar_url"`
	Points     int64  `json:"points"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		University: u.University,
		Major:      u.Major,
		Bio:        u.Bio,
		AvatarURL:  u.AvatarURL,
		Points:     u.Points,
	}
}
