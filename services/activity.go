package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxConcurrentActivities = 5
	CheckinCodeLength       = 6
	CheckinOpensBefore      = 30 * time.Minute
	RegistrationCancelLimit = 24 * time.Hour
	ReminderLeadTime        = time.Hour
)

type CreateActivityInput struct {
	Title                string                  `json:"title" binding:"required,min=3,max=200"`
	Description          string                  `json:"description" binding:"max=5000"`
	Category             models.ActivityCategory `json:"category" binding:"required"`
	Type                 models.ActivityType     `json:"type" binding:"required"`
	Location             string                  `json:"location" binding:"max=255"`
	StartTime            time.Time               `json:"start_time" binding:"required"`
	EndTime              time.Time               `json:"end_time" binding:"required"`
	RegistrationDeadline *time.Time              `json:"registration_deadline"`
	MaxParticipants      *int                    `json:"max_participants" binding:"omitempty,min=1"`
	EntryFee             float64                 `json:"entry_fee" binding:"min=0"`
	EntryFeePoints       int64                   `json:"entry_fee_points" binding:"min=0"`
	RewardPoints         int64                   `json:"reward_points" binding:"min=0"`
	Tags                 []string                `json:"tags" binding:"max=10,dive,max=30"`
	ImageURL             string                  `json:"image_url" binding:"omitempty,url"`
}

type UpdateActivityInput struct {
	Title                *string                  `json:"title" binding:"omitempty,min=3,max=200"`
	Description          *string                  `json:"description" binding:"omitempty,max=5000"`
	Category             *models.ActivityCategory `json:"category"`
	Type                 *models.ActivityType     `json:"type"`
	Location             *string                  `json:"location" binding:"omitempty,max=255"`
	StartTime            *time.Time               `json:"start_time"`
	EndTime              *time.Time               `json:"end_time"`
	RegistrationDeadline *time.Time               `json:"registration_deadline"`
	MaxParticipants      *int                     `json:"max_participants" binding:"omitempty,min=1"`
	EntryFee             *float64                 `json:"entry_fee" binding:"omitempty,min=0"`
	EntryFeePoints       *int64                   `json:"entry_fee_points" binding:"omitempty,min=0"`
	RewardPoints         *int64                   `json:"reward_points" binding:"omitempty,min=0"`
	Tags                 []string                 `json:"tags" binding:"omitempty,max=10,dive,max=30"`
	ImageURL             *string                  `json:"image_url" binding:"omitempty,url"`
	Status               *models.ActivityStatus   `json:"status"`
}

type ActivityQuery struct {
	Status      string `form:"status"`
	Category    string `form:"category"`
	Type        string `form:"type"`
	OrganizerID string `form:"organizer_id"`
	StartDate   string `form:"start_date"`
	EndDate     string `form:"end_date"`
	Location    string `form:"location"`
	Featured    *bool  `form:"featured"`
	Page        int    `form:"page,default=1" binding:"min=1"`
	PageSize    int    `form:"pageSize,default=20" binding:"min=1,max=100"`
	SortBy      string `form:"sort_by" binding:"omitempty,oneof=start_time created_at view_count"`
	SortOrder   string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type ActivitySearchQuery struct {
	Q        string `form:"q" binding:"required,min=2"`
	Category string `form:"category"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=20" binding:"min=1,max=100"`
}

type MyActivitiesQuery struct {
	Type     string `form:"type" binding:"omitempty,oneof=organized registered"`
	Status   string `form:"status"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=20" binding:"min=1,max=100"`
}

// ActivityView is an activity as returned to a given viewer.
type ActivityView struct {
	models.Activity
	Organizer           *models.PublicProfile `json:"organizer,omitempty"`
	IsRegistered        bool                  `json:"is_registered"`
	ParticipationStatus string                `json:"participation_status,omitempty"`
}

type ActivityList struct {
	Activities []ActivityView `json:"activities"`
	PageInfo
}

type ParticipantView struct {
	models.ActivityParticipation
	User *models.PublicProfile `json:"user,omitempty"`
}

type CheckinResult struct {
	Participation *models.ActivityParticipation `json:"participation"`
	PointsEarned  int64                         `json:"points_earned"`
	Balance       int64                         `json:"balance"`
}

type ActivityService struct {
	db       *gorm.DB
	points   *PointsService
	notifier Notifier
	pusher   Pusher
	log      *slog.Logger
	Now      func() time.Time
}

func NewActivityService(db *gorm.DB, points *PointsService, notifier Notifier, pusher Pusher, log *slog.Logger) *ActivityService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	return &ActivityService{
		db:       db,
		points:   points,
		notifier: notifier,
		pusher:   pusher,
		log:      loggerOrDefault(log),
		Now:      defaultNow,
	}
}

func validateSchedule(start, end time.Time, deadline *time.Time) error {
	if !end.After(start) {
		return utils.NewValidationError("End time must be after start time")
	}
	if deadline != nil && !deadline.Before(start) {
		return utils.NewValidationError("Registration deadline must be before start time")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func activitySlug(title string) string {
	return slug.Make(title) + "-" + uuid.NewString()[:8]
}

func (s *ActivityService) Create(ctx context.Context, organizerID string, in CreateActivityInput) (*models.Activity, error) {
	now := s.Now()
	start, end := in.StartTime.UTC(), in.EndTime.UTC()
	deadline := utcPtr(in.RegistrationDeadline)

	if strings.TrimSpace(in.Title) == "" {
		return nil, utils.NewAppError(400, utils.CodeRequiredFieldMissing, "Title is required")
	}
	if !start.After(now) {
		return nil, utils.NewValidationError("Start time must be in the future")
	}
	if err := validateSchedule(start, end, deadline); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, utils.NewValidationError("Invalid activity category")
	}
	if !in.Type.Valid() {
		return nil, utils.NewValidationError("Invalid activity type")
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < 1 {
		return nil, utils.NewValidationError("max_participants must be at least 1")
	}
	if in.EntryFee < 0 || in.EntryFeePoints < 0 || in.RewardPoints < 0 {
		return nil, utils.NewValidationError("Fees and rewards cannot be negative")
	}

	var organizer models.User
	if err := s.db.WithContext(ctx).First(&organizer, "id = ?", organizerID).Error; err != nil {
		return nil, notFoundOr(err, "User")
	}
	if !organizer.IsActive {
		return nil, utils.NewForbidden("Account is deactivated")
	}
	if organizer.VerificationStatus != models.VerificationVerified {
		return nil, utils.NewForbidden("Only verified users can organize activities")
	}

	var running int64
	err := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("organizer_id = ? AND status IN ? AND end_time >= ?",
			organizerID, []models.ActivityStatus{models.ActivityPublished, models.ActivityOngoing}, now).
		Count(&running).Error
	if err != nil {
		return nil, fmt.Errorf("count organizer activities: %w", err)
	}
	if running >= MaxConcurrentActivities {
		return nil, utils.NewConflict(fmt.Sprintf("You can have at most %d active activities", MaxConcurrentActivities))
	}

	code, err := utils.GenerateCheckinCode(CheckinCodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate checkin code: %w", err)
	}
	activity := &models.Activity{
		Title:                strings.TrimSpace(in.Title),
		Slug:                 activitySlug(in.Title),
		Description:          in.Description,
		Category:             in.Category,
		Type:                 in.Type,
		OrganizerID:          organizerID,
		Location:             in.Location,
		StartTime:            start,
		EndTime:              end,
		RegistrationDeadline: deadline,
		EntryFee:             in.EntryFee,
		EntryFeePoints:       in.EntryFeePoints,
		RewardPoints:         in.RewardPoints,
		Status:               models.ActivityDraft,
		CheckinCode:          code,
		Tags:                 models.StringList(in.Tags),
		ImageURL:             in.ImageURL,
	}
	if in.MaxParticipants != nil {
		activity.MaxParticipants = *in.MaxParticipants
	}
	if err := s.db.WithContext(ctx).Create(activity).Error; err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return activity, nil
}

func (s *ActivityService) views(ctx context.Context, activities []models.Activity, viewerID string) ([]ActivityView, error) {
	out := make([]ActivityView, 0, len(activities))
	statuses := map[string]models.ParticipationStatus{}
	if viewerID != "" && len(activities) > 0 {
		ids := make([]string, len(activities))
		for i, a := range activities {
			ids[i] = a.ID
		}
		var rows []models.ActivityParticipation
		err := s.db.WithContext(ctx).Select("activity_id", "status").
			Where("user_id = ? AND activity_id IN ?", viewerID, ids).
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load participations: %w", err)
		}
		for _, p := range rows {
			statuses[p.ActivityID] = p.Status
		}
	}
	for _, a := range activities {
		view := ActivityView{Activity: a}
		if a.Organizer != nil {
			profile := a.Organizer.Public()
			view.Organizer = &profile
		}
		if a.OrganizerID != viewerID {
			view.CheckinCode = ""
		}
		if st, ok := statuses[a.ID]; ok {
			view.ParticipationStatus = string(st)
			view.IsRegistered = st != models.ParticipationCancelled
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *ActivityService) List(ctx context.Context, viewerID string, q ActivityQuery) (*ActivityList, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	status := q.Status
	if status == "" {
		status = string(models.ActivityPublished)
	}
	start, err := parseDate(q.StartDate, "start_date")
	if err != nil {
		return nil, err
	}
	end, err := parseDate(q.EndDate, "end_date")
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Activity{}).Where("status = ?", status)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if q.OrganizerID != "" {
		query = query.Where("organizer_id = ?", q.OrganizerID)
	}
	if start != nil {
		query = query.Where("start_time >= ?", *start)
	}
	if end != nil {
		query = query.Where("start_time < ?", end.AddDate(0, 0, 1))
	}
	if q.Location != "" {
		query = query.Where("LOWER(location) LIKE ?", utils.ContainsFold(q.Location))
	}
	if q.Featured != nil {
		query = query.Where("featured = ?", *q.Featured)
	}
	return s.page(ctx, query, viewerID, page, pageSize, orderClause(q.SortBy, q.SortOrder, "start_time", "start_time", "created_at", "view_count"))
}

func (s *ActivityService) page(ctx context.Context, query *gorm.DB, viewerID string, page, pageSize int, order string) (*ActivityList, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}
	var rows []models.Activity
	err := query.Preload("Organizer").Order(order).Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	views, err := s.views(ctx, rows, viewerID)
	if err != nil {
		return nil, err
	}
	return &ActivityList{Activities: views, PageInfo: newPageInfo(page, pageSize, total)}, nil
}

// Search matches q against title, description and location of published or ongoing activities.
func (s *ActivityService) Search(ctx context.Context, viewerID string, q ActivitySearchQuery) (*ActivityList, error) {
	term := strings.TrimSpace(q.Q)
	if len(term) < 2 {
		return nil, utils.NewValidationError("Search query must be at least 2 characters")
	}
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	pattern := utils.ContainsFold(term)
	query := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("status IN ?", []models.ActivityStatus{models.ActivityPublished, models.ActivityOngoing}).
		Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(location) LIKE ?", pattern, pattern, pattern)
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	return s.page(ctx, query, viewerID, page, pageSize, "start_time ASC")
}

func (s *ActivityService) load(tx *gorm.DB, id string) (*models.Activity, error) {
	var activity models.Activity
	if err := tx.First(&activity, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Activity")
	}
	return &activity, nil
}

func (s *ActivityService) loadOwned(ctx context.Context, id, userID string) (*models.Activity, error) {
	activity, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if activity.OrganizerID != userID {
		return nil, utils.NewForbidden("Only the organizer can manage this activity")
	}
	return activity, nil
}

// Get counts a view and returns the activity as seen by viewerID.
func (s *ActivityService) Get(ctx context.Context, id, viewerID string) (*ActivityView, error) {
	var activity models.Activity
	if err := s.db.WithContext(ctx).Preload("Organizer").First(&activity, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err, "Activity")
	}
	if err := s.db.WithContext(ctx).Model(&activity).UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		s.log.Warn("view count update failed", "activity_id", id, "error", err)
	} else {
		activity.ViewCount++
	}
	views, err := s.views(ctx, []models.Activity{activity}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ActivityService) Update(ctx context.Context, id, userID string, in UpdateActivityInput) (*models.Activity, error) {
	activity, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if activity.Status.Terminal() {
		return nil, utils.NewConflict("Completed or cancelled activities cannot be modified")
	}

	updates := map[string]interface{}{}
	start, end, deadline := activity.StartTime, activity.EndTime, activity.RegistrationDeadline
	moved := false
	if in.StartTime != nil {
		start = in.StartTime.UTC()
		updates["start_time"] = start
		moved = moved || !start.Equal(activity.StartTime)
	}
	if in.EndTime != nil {
		end = in.EndTime.UTC()
		updates["end_time"] = end
		moved = moved || !end.Equal(activity.EndTime)
	}
	if in.RegistrationDeadline != nil {
		deadline = utcPtr(in.RegistrationDeadline)
		updates["registration_deadline"] = *deadline
	}
	if in.StartTime != nil || in.EndTime != nil || in.RegistrationDeadline != nil {
		if err := validateSchedule(start, end, deadline); err != nil {
			return nil, err
		}
	}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Category != nil {
		if !in.Category.Valid() {
			return nil, utils.NewValidationError("Invalid activity category")
		}
		updates["category"] = *in.Category
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, utils.NewValidationError("Invalid activity type")
		}
		updates["type"] = *in.Type
	}
	if in.Location != nil {
		moved = moved || *in.Location != activity.Location
		updates["location"] = *in.Location
	}
	if in.MaxParticipants != nil {
		if *in.MaxParticipants < activity.CurrentParticipants {
			return nil, utils.NewConflict("Capacity cannot be lower than the current participant count")
		}
		updates["max_participants"] = *in.MaxParticipants
	}
	if in.EntryFee != nil {
		updates["entry_fee"] = *in.EntryFee
	}
	if in.EntryFeePoints != nil {
		updates["entry_fee_points"] = *in.EntryFeePoints
	}
	if in.RewardPoints != nil {
		updates["reward_points"] = *in.RewardPoints
	}
	if in.Tags != nil {
		updates["tags"] = models.StringList(in.Tags)
	}
	if in.ImageURL != nil {
		updates["image_url"] = *in.ImageURL
	}

	var next models.ActivityStatus
	if in.Status != nil && *in.Status != activity.Status {
		if !activity.Status.CanTransition(*in.Status) {
			return nil, utils.NewConflict(fmt.Sprintf("Cannot change status from %s to %s", activity.Status, *in.Status))
		}
		next = *in.Status
		if next == models.ActivityOngoing || next == models.ActivityCompleted {
			updates["status"] = next
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(activity).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update activity: %w", err)
		}
	}
	switch next {
	case models.ActivityPublished:
		if _, err := s.Publish(ctx, id, userID); err != nil {
			return nil, err
		}
	case models.ActivityCancelled:
		if _, err := s.Cancel(ctx, id, userID); err != nil {
			return nil, err
		}
	}

	fresh, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if moved {
		s.notifyParticipants(ctx, fresh, NotificationInput{
			Type: NotificationActivityUpdated,
			Data: map[string]interface{}{"activity_id": fresh.ID, "title": fresh.Title, "start_time": fresh.StartTime, "location": fresh.Location},
		})
	}
	s.pusher.SendToRoom(ActivityRoom(id), "activity_updated", fresh)
	return fresh, nil
}

func (s *ActivityService) participantIDs(ctx context.Context, activityID string, statuses ...models.ParticipationStatus) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ActivityParticipation{}).
		Where("activity_id = ? AND status IN ?", activityID, statuses).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return ids, nil
}

func (s *ActivityService) notifyParticipants(ctx context.Context, activity *models.Activity, in NotificationInput) {
	ids, err := s.participantIDs(ctx, activity.ID, models.ParticipationRegistered, models.ParticipationAttended)
	if err != nil {
		s.log.Warn("participant lookup failed", "activity_id", activity.ID, "error", err)
		return
	}
	for _, id := range ids {
		notifyBestEffort(ctx, s.log, s.notifier, id, in)
	}
}

// Publish moves a draft with a future start to published and announces it to every user.
func (s *ActivityService) Publish(ctx context.Context, id, userID string) (*models.Activity, error) {
	activity, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if activity.Status != models.ActivityDraft {
		return nil, utils.NewConflict("Only draft activities can be published")
	}
	if !activity.StartTime.After(s.Now()) {
		return nil, utils.NewValidationError("Cannot publish an activity that has already started")
	}
	res := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("id = ? AND status = ?", id, models.ActivityDraft).
		Update("status", models.ActivityPublished)
	if res.Error != nil {
		return nil, fmt.Errorf("publish activity: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, utils.NewConflict("Only draft activities can be published")
	}
	activity.Status = models.ActivityPublished

	if s.notifier != nil {
		_, err := s.notifier.Broadcast(ctx, NotificationInput{
			Type: NotificationActivityNew,
			Data: map[string]interface{}{
				"activity_id": activity.ID,
				"title":       activity.Title,
				"category":    activity.Category,
				"start_time":  activity.StartTime.Format(time.RFC3339),
			},
		})
		if err != nil {
			s.log.Warn("activity announcement failed", "activity_id", id, "error", err)
		}
	}
	return activity, nil
}

type refund struct {
	userID string
	result *LedgerResult
}

// Cancel marks the activity cancelled, refunds paid entry points and cancels every participation.
func (s *ActivityService) Cancel(ctx context.Context, id, userID string) (*models.Activity, error) {
	activity, err := s.loadOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if activity.Status == models.ActivityOngoing || activity.Status == models.ActivityCompleted {
		return nil, utils.NewConflict("Ongoing or completed activities cannot be cancelled")
	}
	if activity.Status == models.ActivityCancelled {
		return nil, utils.NewConflict("Activity is already cancelled")
	}

	var refunds []refund
	var notified []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}
		if !locked.Status.CanTransition(models.ActivityCancelled) {
			return utils.NewConflict("Activity can no longer be cancelled")
		}

		var parts []models.ActivityParticipation
		if err := tx.Where("activity_id = ? AND status <> ?", id, models.ParticipationCancelled).Find(&parts).Error; err != nil {
			return fmt.Errorf("load participations: %w", err)
		}
		for _, p := range parts {
			notified = append(notified, p.UserID)
			updates := map[string]interface{}{"status": models.ParticipationCancelled}
			if p.PointsPaid > 0 && p.PaymentStatus != models.PaymentRefunded {
				res, err := s.points.AwardTx(tx, AwardInput{
					UserID:   p.UserID,
					Points:   p.PointsPaid,
					Source:   SourceActivityRefund,
					Reason:   "Refund: " + locked.Title + " was cancelled",
					Metadata: map[string]interface{}{"activity_id": id},
				})
				if err != nil {
					return err
				}
				refunds = append(refunds, refund{userID: p.UserID, result: res})
				updates["payment_status"] = models.PaymentRefunded
			}
			if err := tx.Model(&models.ActivityParticipation{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("cancel participation: %w", err)
			}
		}
		return tx.Model(locked).Updates(map[string]interface{}{
			"status":               models.ActivityCancelled,
			"current_participants": 0,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	for _, r := range refunds {
		s.points.AfterAward(ctx, r.userID, r.result)
	}
	for _, uid := range notified {
		notifyBestEffort(ctx, s.log, s.notifier, uid, NotificationInput{
			Type:     NotificationActivityCancelled,
			Priority: PriorityHigh,
			Data:     map[string]interface{}{"activity_id": id, "title": activity.Title},
		})
	}
	activity.Status = models.ActivityCancelled
	activity.CurrentParticipants = 0
	s.pusher.SendToRoom(ActivityRoom(id), "activity_cancelled", map[string]interface{}{"activity_id": id})
	return activity, nil
}

// Register deducts the entry fee and claims a seat while holding the activity row lock.
func (s *ActivityService) Register(ctx context.Context, id, userID string) (*models.ActivityParticipation, error) {
	now := s.Now()
	var participation models.ActivityParticipation
	var activity *models.Activity
	var fee *LedgerResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		activity, err = s.load(tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
		if err != nil {
			return err
		}
		if activity.Status != models.ActivityPublished {
			return utils.NewConflict("Activity is not open for registration")
		}
		if now.After(activity.Deadline()) {
			return utils.NewValidationError("Registration deadline has passed")
		}

		existing := tx.Where("activity_id = ? AND user_id = ?", id, userID).Limit(1).Find(&participation)
		if existing.Error != nil {
			return fmt.Errorf("load participation: %w", existing.Error)
		}
		if existing.RowsAffected > 0 && participation.Status != models.ParticipationCancelled {
			return utils.NewAlreadyExists("Already registered for this activity")
		}
		if activity.Full() {
			return utils.NewConflict("Activity is full")
		}

		if activity.EntryFeePoints > 0 {
			fee, err = s.points.DeductTx(tx, DeductInput{
				UserID:   userID,
				Points:   activity.EntryFeePoints,
				Source:   SourceActivityRegistration,
				Reason:   "Registration: " + activity.Title,
				Metadata: map[string]interface{}{"activity_id": id},
			})
			if err != nil {
				return err
			}
		}

		payment := models.PaymentPaid
		if activity.EntryFee > 0 {
			payment = models.PaymentPending
		}
		participation.ActivityID = id
		participation.UserID = userID
		participation.Status = models.ParticipationRegistered
		participation.PaymentStatus = payment
		participation.PointsPaid = activity.EntryFeePoints
		participation.PointsEarned = 0
		participation.RegisteredAt = now
		participation.CheckinTime = nil
		if err := tx.Save(&participation).Error; err != nil {
			return fmt.Errorf("save participation: %w", err)
		}
		return tx.Model(activity).UpdateColumn("current_participants", gorm.Expr("current_participants + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	if fee != nil {
		s.pusher.SendToUser(userID, "points_deducted", map[string]interface{}{
			"points":  fee.Points,
			"balance": fee.Balance,
			"reason":  fee.Transaction.Reason,
		})
	}
	notifyBestEffort(ctx, s.log, s.notifier, userID, NotificationInput{
		Type: NotificationActivityRegistered,
		Data: map[string]interface{}{"activity_id": id, "title": activity.Title},
	})
	notifyBestEffort(ctx, s.log, s.notifier, activity.OrganizerID, NotificationInput{
		Type:     NotificationActivityRegistered,
		Title:    "New registration: " + activity.Title,
		Message:  "Someone registered for \"" + activity.Title + "\".",
		Channels: []string{models.ChannelSocket},
		Data:     map[string]interface{}{"activity_id": id, "title": activity.Title, "user_id": userID},
	})
	s.pusher.SendToRoom(ActivityRoom(id), "participant_joined", map[string]interface{}{
		"activity_id":          id,
		"current_participants": activity.CurrentParticipants + 1,
	})
	return &participation, nil
}

// CancelRegistration is refused after attendance and within 24 hours of the start.
func (s *ActivityService) CancelRegistration(ctx context.Context, id, userID string) error {
	activity, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	var participation models.ActivityParticipation
	if err := s.db.WithContext(ctx).Where("activity_id = ? AND user_id = ?", id, userID).First(&participation).Error; err != nil {
		return notFoundOr(err, "Registration")
	}
	switch participation.Status {
	case models.ParticipationCancelled:
		return utils.NewConflict("Registration is already cancelled")
	case models.ParticipationAttended:
		return utils.NewConflict("Cannot cancel after checking in")
	}
	if activity.StartTime.Sub(s.Now()) < RegistrationCancelLimit {
		return utils.NewValidationError("Registrations cannot be cancelled within 24 hours of the start")
	}

	var refunded *LedgerResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": models.ParticipationCancelled}
		if participation.PointsPaid > 0 && participation.PaymentStatus != models.PaymentRefunded {
			updates["payment_status"] = models.PaymentRefunded
		}
		res := tx.Model(&models.ActivityParticipation{}).
			Where("id = ? AND status = ?", participation.ID, models.ParticipationRegistered).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("cancel participation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflict("Registration is no longer active")
		}
		if err := tx.Model(&models.Activity{}).
			Where("id = ? AND current_participants > 0", id).
			UpdateColumn("current_participants", gorm.Expr("current_participants - 1")).Error; err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		if _, ok := updates["payment_status"]; ok {
			var err error
			refunded, err = s.points.AwardTx(tx, AwardInput{
				UserID:   userID,
				Points:   participation.PointsPaid,
				Source:   SourceActivityRefund,
				Reason:   "Refund: registration for " + activity.Title + " cancelled",
				Metadata: map[string]interface{}{"activity_id": id},
			})
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	data := map[string]interface{}{"activity_id": id, "title": activity.Title}
	if refunded != nil {
		s.points.AfterAward(ctx, userID, refunded)
		data["refunded_points"] = refunded.Points
	}
	notifyBestEffort(ctx, s.log, s.notifier, userID, NotificationInput{
		Type: NotificationActivityRegistrationCancelled,
		Data: data,
	})
	s.pusher.SendToRoom(ActivityRoom(id), "participant_left", map[string]interface{}{"activity_id": id})
	return nil
}

// Checkin marks attendance inside [start-30m, end] and pays the reward exactly once.
func (s *ActivityService) Checkin(ctx context.Context, id, userID, code string) (*CheckinResult, error) {
	now := s.Now()
	activity, err := s.load(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if activity.Status != models.ActivityPublished && activity.Status != models.ActivityOngoing {
		return nil, utils.NewConflict("Check-in is not available for this activity")
	}

	var participation models.ActivityParticipation
	if err := s.db.WithContext(ctx).Where("activity_id = ? AND user_id = ?", id, userID).First(&participation).Error; err != nil {
		if isNotFound(err) {
			return nil, utils.NewValidationError("You are not registered for this activity")
		}
		return nil, fmt.Errorf("load participation: %w", err)
	}
	switch participation.Status {
	case models.ParticipationAttended:
		return nil, utils.NewConflict("Already checked in")
	case models.ParticipationCancelled:
		return nil, utils.NewValidationError("You are not registered for this activity")
	}

	// The code is optional; a supplied code must match.
	if code = strings.TrimSpace(code); code != "" && activity.CheckinCode != "" && !strings.EqualFold(code, activity.CheckinCode) {
		return nil, utils.NewValidationError("Invalid check-in code")
	}
	if now.Before(activity.StartTime.Add(-CheckinOpensBefore)) {
		return nil, utils.NewValidationError("Check-in opens 30 minutes before the start")
	}
	if now.After(activity.EndTime) {
		return nil, utils.NewValidationError("Check-in has closed")
	}

	result := &CheckinResult{Participation: &participation}
	var reward *LedgerResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ActivityParticipation{}).
			Where("id = ? AND status = ?", participation.ID, models.ParticipationRegistered).
			Updates(map[string]interface{}{
				"status":        models.ParticipationAttended,
				"checkin_time":  now,
				"points_earned": activity.RewardPoints,
			})
		if res.Error != nil {
			return fmt.Errorf("check in: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflict("Already checked in")
		}
		if activity.RewardPoints > 0 {
			var err error
			reward, err = s.points.AwardTx(tx, AwardInput{
				UserID:   userID,
				Points:   activity.RewardPoints,
				Source:   SourceActivityCheckin,
				Reason:   "Attended " + activity.Title,
				Metadata: map[string]interface{}{"activity_id": id},
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	participation.Status = models.ParticipationAttended
	participation.CheckinTime = &now
	participation.PointsEarned = activity.RewardPoints
	if reward != nil {
		result.PointsEarned = reward.Points
		result.Balance = reward.Balance
		s.points.AfterAward(ctx, userID, reward)
	}
	s.pusher.SendToRoom(ActivityRoom(id), "participant_checked_in", map[string]interface{}{"activity_id": id, "user_id": userID})
	return result, nil
}

func (s *ActivityService) Participants(ctx context.Context, id, userID, status string) ([]ParticipantView, error) {
	if _, err := s.loadOwned(ctx, id, userID); err != nil {
		return nil, err
	}
	query := s.db.WithContext(ctx).Preload("User").Where("activity_id = ?", id)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []models.ActivityParticipation
	if err := query.Order("registered_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	out := make([]ParticipantView, 0, len(rows))
	for _, p := range rows {
		view := ParticipantView{ActivityParticipation: p}
		if p.User != nil {
			profile := p.User.Public()
			view.User = &profile
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *ActivityService) MyActivities(ctx context.Context, userID string, q MyActivitiesQuery) (*ActivityList, error) {
	page, pageSize := normalizePage(q.Page, q.PageSize, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.Activity{})
	if q.Type == "registered" {
		sub := s.db.Model(&models.ActivityParticipation{}).Select("activity_id").
			Where("user_id = ? AND status <> ?", userID, models.ParticipationCancelled)
		query = query.Where("id IN (?)", sub)
	} else {
		query = query.Where("organizer_id = ?", userID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	return s.page(ctx, query, userID, page, pageSize, "start_time DESC")
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type ActivityMeta struct {
	Categories []Option `json:"categories"`
	Types      []Option `json:"types"`
	Statuses   []Option `json:"statuses"`
}

var activityLabels = map[string]string{
	"academic":    "Academic",
	"sports":      "Sports",
	"social":      "Social",
	"volunteer":   "Volunteer",
	"career":      "Career",
	"cultural":    "Cultural",
	"technology":  "Technology",
	"individual":  "Individual",
	"team":        "Team",
	"competition": "Competition",
	"workshop":    "Workshop",
	"seminar":     "Seminar",
	"draft":       "Draft",
	"published":   "Published",
	"ongoing":     "Ongoing",
	"completed":   "Completed",
	"cancelled":   "Cancelled",
}

func options[T ~string](values []T) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: string(v), Label: activityLabels[string(v)]}
	}
	return out
}

func (s *ActivityService) Meta() ActivityMeta {
	return ActivityMeta{
		Categories: options(models.ActivityCategories),
		Types:      options(models.ActivityTypes),
		Statuses:   options(models.ActivityStatuses),
	}
}

// AdvanceStatuses starts published activities whose start has passed and completes ongoing
// activities whose end has passed.
func (s *ActivityService) AdvanceStatuses(ctx context.Context) (started, completed int64, err error) {
	now := s.Now()
	res := s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("status = ? AND start_time <= ?", models.ActivityPublished, now).
		Update("status", models.ActivityOngoing)
	if res.Error != nil {
		return 0, 0, fmt.Errorf("start activities: %w", res.Error)
	}
	started = res.RowsAffected

	res = s.db.WithContext(ctx).Model(&models.Activity{}).
		Where("status = ? AND end_time < ?", models.ActivityOngoing, now).
		Update("status", models.ActivityCompleted)
	if res.Error != nil {
		return started, 0, fmt.Errorf("complete activities: %w", res.Error)
	}
	return started, res.RowsAffected, nil
}

// SendReminders notifies registered participants of activities starting within the next hour.
// Each activity is reminded once.
func (s *ActivityService) SendReminders(ctx context.Context) (int, error) {
	now := s.Now()
	var due []models.Activity
	err := s.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND start_time > ? AND start_time <= ?",
			models.ActivityPublished, false, now, now.Add(ReminderLeadTime)).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("load due activities: %w", err)
	}

	sent := 0
	for i := range due {
		a := &due[i]
		res := s.db.WithContext(ctx).Model(&models.Activity{}).
			Where("id = ? AND reminder_sent = ?", a.ID, false).
			Update("reminder_sent", true)
		if res.Error != nil {
			return sent, fmt.Errorf("mark reminder: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		ids, err := s.participantIDs(ctx, a.ID, models.ParticipationRegistered)
		if err != nil {
			return sent, err
		}
		for _, uid := range ids {
			notifyBestEffort(ctx, s.log, s.notifier, uid, NotificationInput{
				Type:     NotificationActivityReminder,
				Priority: PriorityHigh,
				Data: map[string]interface{}{
					"activity_id": a.ID,
					"title":       a.Title,
					"start_time":  a.StartTime.Format(time.RFC3339),
					"location":    a.Location,
				},
			})
			sent++
		}
	}
	return sent, nil
}
