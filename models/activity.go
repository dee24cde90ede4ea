package models

import (
	"time"
)

type ActivityCategory string

const (
	CategoryAcademic   ActivityCategory = "academic"
	CategorySports     ActivityCategory = "sports"
	CategorySocial     ActivityCategory = "social"
	CategoryVolunteer  ActivityCategory = "volunteer"
	CategoryCareer     ActivityCategory = "career"
	CategoryCultural   ActivityCategory = "cultural"
	CategoryTechnology ActivityCategory = "technology"
)

var ActivityCategories = []ActivityCategory{
	CategoryAcademic, CategorySports, CategorySocial, CategoryVolunteer,
	CategoryCareer, CategoryCultural, CategoryTechnology,
}

func (c ActivityCategory) Valid() bool {
	for _, v := range ActivityCategories {
		if v == c {
			return true
		}
	}
	return false
}

type ActivityType string

const (
	TypeIndividual  ActivityType = "individual"
	TypeTeam        ActivityType = "team"
	TypeCompetition ActivityType = "competition"
	TypeWorkshop    ActivityType = "workshop"
	TypeSeminar     ActivityType = "seminar"
)

var ActivityTypes = []ActivityType{TypeIndividual, TypeTeam, TypeCompetition, TypeWorkshop, TypeSeminar}

func (t ActivityType) Valid() bool {
	for _, v := range ActivityTypes {
		if v == t {
			return true
		}
	}
	return false
}

type ActivityStatus string

const (
	ActivityDraft     ActivityStatus = "draft"
	ActivityPublished ActivityStatus = "published"
	ActivityOngoing   ActivityStatus = "ongoing"
	ActivityCompleted ActivityStatus = "completed"
	ActivityCancelled ActivityStatus = "cancelled"
)

var ActivityStatuses = []ActivityStatus{
	ActivityDraft, ActivityPublished, ActivityOngoing, ActivityCompleted, ActivityCancelled,
}

var activityTransitions = map[ActivityStatus][]ActivityStatus{
	ActivityDraft:     {ActivityPublished, ActivityCancelled},
	ActivityPublished: {ActivityOngoing, ActivityCancelled},
	ActivityOngoing:   {ActivityCompleted},
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s ActivityStatus) CanTransition(next ActivityStatus) bool {
	for _, v := range activityTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is completed or cancelled.
func (s ActivityStatus) Terminal() bool {
	return s == ActivityCompleted || s == ActivityCancelled
}

type Activity struct {
	Base
	Title                string           `gorm:"not null" json:"title"`
	Slug                 string           `gorm:"index" json:"slug"`
	Description          string           `gorm:"type:text" json:"description"`
	Category             ActivityCategory `gorm:"size:20;not null;index" json:"category"`
	Type                 ActivityType     `gorm:"size:20;not null" json:"type"`
	OrganizerID          string           `gorm:"size:36;not null;index" json:"organizer_id"`
	Organizer            *User            `gorm:"foreignKey:OrganizerID" json:"-"`
	Location             string           `json:"location"`
	StartTime            time.Time        `gorm:"not null;index" json:"start_time"`
	EndTime              time.Time        `gorm:"not null" json:"end_time"`
	RegistrationDeadline *time.Time       `json:"registration_deadline,omitempty"`
	MaxParticipants      int              `gorm:"not null;default:0" json:"max_participants"`
	CurrentParticipants  int              `gorm:"not null;default:0" json:"current_participants"`
	EntryFee             float64          `gorm:"not null;default:0" json:"entry_fee"`
	EntryFeePoints       int64            `gorm:"not null;default:0" json:"entry_fee_points"`
	RewardPoints         int64            `gorm:"not null;default:0" json:"reward_points"`
	Status               ActivityStatus   `gorm:"size:20;not null;index" json:"status"`
	CheckinCode          string           `gorm:"size:6" json:"checkin_code,omitempty"`
	Tags                 StringList       `json:"tags"`
	ImageURL             string           `json:"image_url"`
	ViewCount            int              `gorm:"not null;default:0" json:"view_count"`
	Featured             bool             `gorm:"not null" json:"featured"`
	ReminderSent         bool             `gorm:"not null" json:"-"`
}

// Deadline is the registration deadline, defaulting to the start time.
func (a *Activity) Deadline() time.Time {
	if a.RegistrationDeadline != nil {
		return *a.RegistrationDeadline
	}
	return a.StartTime
}

func (a *Activity) Full() bool {
	return a.MaxParticipants > 0 && a.CurrentParticipants >= a.MaxParticipants
}

type ParticipationStatus string

const (
	ParticipationRegistered ParticipationStatus = "registered"
	ParticipationAttended   ParticipationStatus = "attended"
	ParticipationCancelled  ParticipationStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// ActivityParticipation is unique per (activity, user); a cancelled row is revived on re-registration.
type ActivityParticipation struct {
	Base
	ActivityID    string              `gorm:"size:36;not null;uniqueIndex:idx_participation_activity_user" json:"activity_id"`
	UserID        string              `gorm:"size:36;not null;uniqueIndex:idx_participation_activity_user;index" json:"user_id"`
	Activity      *Activity           `gorm:"foreignKey:ActivityID" json:"activity,omitempty"`
	User          *User               `gorm:"foreignKey:UserID" json:"-"`
	Status        ParticipationStatus `gorm:"size:20;not null" json:"status"`
	PaymentStatus PaymentStatus       `gorm:"size:20;not null" json:"payment_status"`
	PointsPaid    int64               `gorm:"not null;default:0" json:"points_paid"`
	PointsEarned  int64               `gorm:"not null;default:0" json:"points_earned"`
	RegisteredAt  time.Time           `json:"registered_at"`
	CheckinTime   *time.Time          `json:"checkin_time,omitempty"`
}
