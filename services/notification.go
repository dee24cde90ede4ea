package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"gorm.io/gorm"
)

const (
	NotificationActivityNew                   = "activity_new"
	NotificationActivityReminder              = "activity_reminder"
	NotificationActivityUpdated               = "activity_updated"
	NotificationActivityCancelled             = "activity_cancelled"
	NotificationActivityRegistered            = "activity_registered"
	NotificationActivityRegistrationCancelled = "activity_registration_cancelled"
	NotificationPointsEarned                  = "points_earned"
	NotificationPointsDeducted                = "points_deducted"
	NotificationPointsReceived                = "points_received"
	NotificationPointsTransferredOut          = "points_transferred_out"
	NotificationRideBooked                    = "ride_booked"
	NotificationRideBookingCancelled          = "ride_booking_cancelled"
	NotificationRideCancelled                 = "ride_cancelled"
	NotificationRankChanged                   = "rank_changed"
	NotificationSystemAnnouncement            = "system_announcement"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

type notificationTemplate struct {
	Title   string
	Message string
}

var notificationTemplates = map[string]notificationTemplate{
	NotificationActivityNew:                   {"New activity: {{title}}", "A new {{category}} activity \"{{title}}\" starts at {{start_time}}."},
	NotificationActivityReminder:              {"Starting soon: {{title}}", "\"{{title}}\" starts at {{start_time}} at {{location}}."},
	NotificationActivityUpdated:               {"Activity updated: {{title}}", "The time or location of \"{{title}}\" has changed."},
	NotificationActivityCancelled:             {"Activity cancelled: {{title}}", "\"{{title}}\" has been cancelled. Any entry points were refunded."},
	NotificationActivityRegistered:            {"Registered: {{title}}", "You are registered for \"{{title}}\"."},
	NotificationActivityRegistrationCancelled: {"Registration cancelled: {{title}}", "Your registration for \"{{title}}\" was cancelled."},
	NotificationPointsEarned:                  {"You earned {{points}} points", "{{reason}}. Your balance is now {{balance}}."},
	NotificationPointsDeducted:                {"{{points}} points spent", "{{reason}}. Your balance is now {{balance}}."},
	NotificationPointsReceived:                {"You received {{points}} points", "{{sender}} sent you {{points}} points."},
	NotificationPointsTransferredOut:          {"You sent {{points}} points", "You sent {{points}} points to {{recipient}}."},
	NotificationRideBooked:                    {"New booking on your ride", "{{passenger}} booked {{seats}} seat(s) to {{destination}}."},
	NotificationRideBookingCancelled:          {"Booking cancelled", "{{passenger}} cancelled {{seats}} seat(s) to {{destination}}."},
	NotificationRideCancelled:                 {"Ride cancelled", "Your ride to {{destination}} on {{departure_time}} was cancelled by the driver."},
	NotificationRankChanged:                   {"Your rank changed", "You are now ranked #{{rank}}."},
	NotificationSystemAnnouncement:            {"{{title}}", "{{message}}"},
}

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// renderTemplate replaces {{key}} with data[key], leaving unknown keys untouched.
func renderTemplate(tpl string, data map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := data[key]; ok {
			return fmt.Sprint(v)
		}
		return match
	})
}

type NotificationInput struct {
	Type     string
	Title    string
	Message  string
	Data     map[string]interface{}
	Channels []string
	Priority string
}

var defaultChannels = []string{models.ChannelSocket, models.ChannelDatabase}

type NotificationService struct {
	db     *gorm.DB
	pusher Pusher
	mailer Mailer
	events EventPublisher
	log    *slog.Logger
}

func NewNotificationService(db *gorm.DB, pusher Pusher, mailer Mailer, events EventPublisher, log *slog.Logger) *NotificationService {
	if pusher == nil {
		pusher = nopPusher{}
	}
	if events == nil {
		events = nopPublisher{}
	}
	return &NotificationService{db: db, pusher: pusher, mailer: mailer, events: events, log: loggerOrDefault(log)}
}

func (s *NotificationService) build(userID string, in NotificationInput) *models.Notification {
	title, message := in.Title, in.Message
	if tpl, ok := notificationTemplates[in.Type]; ok {
		if title == "" {
			title = renderTemplate(tpl.Title, in.Data)
		}
		if message == "" {
			message = renderTemplate(tpl.Message, in.Data)
		}
	}
	channels := in.Channels
	if len(channels) == 0 {
		channels = defaultChannels
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	return &models.Notification{
		UserID:   userID,
		Type:     in.Type,
		Title:    title,
		Message:  message,
		Data:     toJSON(in.Data),
		Channels: models.StringList(channels),
		Priority: priority,
	}
}

// Send persists the notification when the database channel is requested and then pushes it
// over the remaining channels. Only the database write can fail the call.
func (s *NotificationService) Send(ctx context.Context, userID string, in NotificationInput) (*models.Notification, error) {
	if in.Type == "" {
		return nil, utils.NewValidationError("Notification type is required")
	}
	n := s.build(userID, in)

	if n.Channels.Contains(models.ChannelDatabase) {
		if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
			return nil, fmt.Errorf("create notification: %w", err)
		}
	}
	if n.Channels.Contains(models.ChannelSocket) {
		s.pusher.SendToUser(userID, "notification", n)
	}
	if n.Channels.Contains(models.ChannelEmail) {
		s.sendEmail(ctx, userID, n)
	}
	publishBestEffort(ctx, s.log, s.events, subjectNotificationBase+n.Type, n)
	return n, nil
}

func (s *NotificationService) sendEmail(ctx context.Context, userID string, n *models.Notification) {
	if s.mailer == nil {
		return
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email", "first_name", "last_name").First(&user, "id = ?", userID).Error; err != nil {
		s.log.Warn("notification email skipped", "user_id", userID, "error", err)
		return
	}
	msg := MailMessage{To: user.Email, ToName: user.FullName(), Subject: n.Title, PlainText: n.Message}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn("notification email failed", "user_id", userID, "error", err)
	}
}

// SendBatch delivers the same notification to every user, counting failures instead of stopping.
func (s *NotificationService) SendBatch(ctx context.Context, userIDs []string, in NotificationInput) (sent, failed int) {
	for _, id := range userIDs {
		if _, err := s.Send(ctx, id, in); err != nil {
			s.log.Warn("batch notification failed", "user_id", id, "error", err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

// Broadcast stores a row per active user when the database channel is requested and pushes a
// single broadcast event to every connected client.
func (s *NotificationService) Broadcast(ctx context.Context, in NotificationInput) (int, error) {
	if in.Type == "" {
		return 0, utils.NewValidationError("Notification type is required")
	}
	template := s.build("", in)
	stored := 0

	if template.Channels.Contains(models.ChannelDatabase) {
		var userIDs []string
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true).Pluck("id", &userIDs).Error; err != nil {
			return 0, fmt.Errorf("list users: %w", err)
		}
		rows := make([]models.Notification, 0, len(userIDs))
		for _, id := range userIDs {
			row := *template
			row.UserID = id
			rows = append(rows, row)
		}
		if len(rows) > 0 {
			if err := s.db.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
				return 0, fmt.Errorf("store broadcast: %w", err)
			}
		}
		stored = len(rows)
	}
	if template.Channels.Contains(models.ChannelSocket) {
		s.pusher.Broadcast("broadcast_notification", template)
	}
	publishBestEffort(ctx, s.log, s.events, subjectNotificationBase+"broadcast", template)
	return stored, nil
}

type NotificationQuery struct {
	Limit  int    `form:"limit,default=20" binding:"min=0,max=100"`
	Offset int    `form:"offset,default=0" binding:"min=0"`
	Type   string `form:"type"`
	IsRead *bool  `form:"is_read"`
}

type NotificationList struct {
	Notifications []models.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unread_count"`
	Limit         int                   `json:"limit"`
	Offset        int                   `json:"offset"`
}

func (s *NotificationService) List(ctx context.Context, userID string, q NotificationQuery) (*NotificationList, error) {
	limit, offset := utils.Paginate(q.Limit, q.Offset, 20, 100)
	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if q.Type != "" {
		query = query.Where("type = ?", q.Type)
	}
	if q.IsRead != nil {
		query = query.Where("is_read = ?", *q.IsRead)
	}

	out := &NotificationList{Notifications: []models.Notification{}, Limit: limit, Offset: offset}
	if err := query.Session(&gorm.Session{}).Count(&out.Total).Error; err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out.Notifications).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.UnreadCount = unread
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": defaultNow()})
	if res.Error != nil {
		return fmt.Errorf("mark read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFound("Notification")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": defaultNow()})
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Notification{})
	if res.Error != nil {
		return fmt.Errorf("delete notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFound("Notification")
	}
	return nil
}
