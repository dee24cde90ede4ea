package services

import (
	"context"
	"fmt"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"gorm.io/gorm"
)

const (
	PeriodAllTime = "all_time"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

type LeaderboardQuery struct {
	Period   string `form:"period" binding:"omitempty,oneof=all_time weekly monthly"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=10" binding:"min=1,max=50"`
}

type LeaderboardEntry struct {
	ID         string `json:"id" gorm:"column:id"`
	FirstName  string `json:"first_name" gorm:"column:first_name"`
	LastName   string `json:"last_name" gorm:"column:last_name"`
	AvatarURL  string `json:"avatar_url" gorm:"column:avatar_url"`
	University string `json:"university" gorm:"column:university"`
	Points     int64  `json:"points" gorm:"column:points"`
	Rank       int64  `json:"rank" gorm:"column:rank"`
}

type Leaderboard struct {
	Period   string             `json:"period"`
	Entries  []LeaderboardEntry `json:"leaderboard"`
	UserRank *LeaderboardEntry  `json:"user_rank"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Total    int64              `json:"total"`
}

// periodStart returns the lower bound for a ranked period; all_time has none.
func periodStart(period string, now time.Time) *time.Time {
	day := utils.StartOfDay(now)
	var start time.Time
	switch period {
	case PeriodWeekly:
		start = day.AddDate(0, 0, -int(day.Weekday()))
	case PeriodMonthly:
		start = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return nil
	}
	return &start
}

func (s *PointsService) rankedUsers(ctx context.Context, period string) *gorm.DB {
	base := s.db.WithContext(ctx).Model(&models.User{}).Where("users.is_active = ?", true)
	columns := "users.id, users.first_name, users.last_name, users.avatar_url, users.university"

	since := periodStart(period, s.Now())
	if since == nil {
		return base.Select(columns + ", users.points AS points, RANK() OVER (ORDER BY users.points DESC) AS rank")
	}
	sum := "COALESCE(SUM(point_transactions.points), 0)"
	return base.
		Joins("LEFT JOIN point_transactions ON point_transactions.user_id = users.id AND point_transactions.points > 0 AND point_transactions.created_at >= ?", *since).
		Select(columns + ", " + sum + " AS points, RANK() OVER (ORDER BY " + sum + " DESC) AS rank").
		Group(columns)
}

// Leaderboard ranks active users by balance (all_time) or by points earned within the period.
func (s *PointsService) Leaderboard(ctx context.Context, userID string, q LeaderboardQuery) (*Leaderboard, error) {
	if q.Period == "" {
		q.Period = PeriodAllTime
	}
	page, pageSize := normalizePage(q.Page, q.PageSize, 10, 50)

	out := &Leaderboard{Period: q.Period, Entries: []LeaderboardEntry{}, Page: page, PageSize: pageSize}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true).Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	err := s.db.WithContext(ctx).Table("(?) AS ranked", s.rankedUsers(ctx, q.Period)).
		Order("rank, id").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&out.Entries).Error
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	if userID != "" {
		var mine []LeaderboardEntry
		err := s.db.WithContext(ctx).Table("(?) AS ranked", s.rankedUsers(ctx, q.Period)).
			Where("id = ?", userID).
			Limit(1).
			Scan(&mine).Error
		if err != nil {
			return nil, fmt.Errorf("fetch user rank: %w", err)
		}
		if len(mine) > 0 {
			out.UserRank = &mine[0]
		}
	}
	return out, nil
}
