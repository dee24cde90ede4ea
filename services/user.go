package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"gorm.io/gorm"
)

const MaxBatchUsers = 50

type UpdateProfileInput struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=1,max=50"`
	LastName  *string `json:"lastName" binding:"omitempty,min=1,max=50"`
	Major     *string `json:"major" binding:"omitempty,max=100"`
	Bio       *string `json:"bio" binding:"omitempty,max=500"`
	Phone     *string `json:"phone" binding:"omitempty,max=20"`
	AvatarURL *string `json:"avatarUrl" binding:"omitempty,url"`
}

type BatchUsersInput struct {
	UserIDs []string `json:"userIds" binding:"required,min=1,max=50,dive,required"`
}

type UserService struct {
	db     *gorm.DB
	points *PointsService
	log    *slog.Logger
}

func NewUserService(db *gorm.DB, points *PointsService, log *slog.Logger) *UserService {
	return &UserService{db: db, points: points, log: loggerOrDefault(log)}
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	if userID == DemoUserID {
		return DemoUser(), nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		return nil, notFoundOr(err, "User")
	}
	return &user, nil
}

// UpdateProfile applies the provided fields. The first time every profile field is filled in,
// the user earns the profile_completion reward.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) (*models.User, error) {
	if userID == DemoUserID {
		return nil, utils.NewForbidden("The demo account cannot be modified")
	}
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	set := func(column string, value *string, field *string) {
		if value == nil {
			return
		}
		v := strings.TrimSpace(*value)
		updates[column] = v
		*field = v
	}
	set("first_name", in.FirstName, &user.FirstName)
	set("last_name", in.LastName, &user.LastName)
	set("major", in.Major, &user.Major)
	set("bio", in.Bio, &user.Bio)
	set("phone", in.Phone, &user.Phone)
	set("avatar_url", in.AvatarURL, &user.AvatarURL)
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if profileComplete(user) {
		s.rewardProfileCompletion(ctx, user)
	}
	return user, nil
}

func profileComplete(u *models.User) bool {
	for _, v := range []string{u.FirstName, u.LastName, u.Major, u.Bio, u.Phone, u.AvatarURL} {
		if v == "" {
			return false
		}
	}
	return true
}

func (s *UserService) rewardProfileCompletion(ctx context.Context, user *models.User) {
	if s.points == nil {
		return
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&models.PointTransaction{}).
		Where("user_id = ? AND source = ?", user.ID, types.RuleProfileCompletion).
		Count(&n).Error
	if err != nil || n > 0 {
		return
	}
	result, err := s.points.Award(ctx, AwardInput{UserID: user.ID, Rule: types.RuleProfileCompletion})
	if err != nil {
		s.log.Warn("profile completion award failed", "user_id", user.ID, "error", err)
		return
	}
	user.Points = result.Balance
}

// GetPublic returns the public profile of an active user.
func (s *UserService) GetPublic(ctx context.Context, id string) (*models.PublicProfile, error) {
	if id == DemoUserID {
		p := DemoUser().Public()
		return &p, nil
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ? AND is_active = ?", id, true).Error; err != nil {
		return nil, notFoundOr(err, "User")
	}
	p := user.Public()
	return &p, nil
}

// Batch resolves up to MaxBatchUsers ids. Unknown or inactive ids are skipped.
func (s *UserService) Batch(ctx context.Context, ids []string) ([]models.PublicProfile, error) {
	if len(ids) == 0 || len(ids) > MaxBatchUsers {
		return nil, utils.NewValidationError(fmt.Sprintf("userIds must contain between 1 and %d ids", MaxBatchUsers))
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ? AND is_active = ?", ids, true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}
