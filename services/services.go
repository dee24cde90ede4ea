// Package services holds the business rules of every CampusRide module. Services own their
// transactions; controllers only bind requests and translate errors.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pusher delivers real-time events to connected socket clients.
type Pusher interface {
	SendToUser(userID, event string, payload interface{})
	SendToRoom(room, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Notifier fans a notification out over its requested channels.
type Notifier interface {
	Send(ctx context.Context, userID string, in NotificationInput) (*models.Notification, error)
	Broadcast(ctx context.Context, in NotificationInput) (int, error)
}

type nopPusher struct{}

func (nopPusher) SendToUser(string, string, interface{}) {}
func (nopPusher) SendToRoom(string, string, interface{}) {}
func (nopPusher) Broadcast(string, interface{})          {}

func UserRoom(userID string) string         { return "user:" + userID }
func ActivityRoom(activityID string) string { return "activity:" + activityID }
func RideRoom(rideID string) string         { return "ride:" + rideID }

func defaultNow() time.Time {
	return time.Now().UTC()
}

func loggerOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// notFoundOr maps gorm.ErrRecordNotFound to a 404 for resource and wraps anything else.
func notFoundOr(err error, resource string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewNotFound(resource)
	}
	return fmt.Errorf("load %s: %w", resource, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// notifyBestEffort sends a notification and logs instead of failing the caller.
func notifyBestEffort(ctx context.Context, log *slog.Logger, notifier Notifier, userID string, in NotificationInput) {
	if notifier == nil {
		return
	}
	if _, err := notifier.Send(ctx, userID, in); err != nil {
		log.Warn("notification failed", "user_id", userID, "type", in.Type, "error", err)
	}
}

func normalizePage(page, pageSize, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	limit, _ := utils.Paginate(pageSize, 0, def, max)
	return page, limit
}

func parseDate(value, field string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, utils.NewAppError(400, utils.CodeInvalidFormat, field+" must be formatted as YYYY-MM-DD")
	}
	return &t, nil
}

// PageInfo describes a page of a paginated listing.
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func newPageInfo(page, pageSize int, total int64) PageInfo {
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return PageInfo{Page: page, PageSize: pageSize, Total: total, TotalPages: pages}
}

// orderClause validates a user-supplied sort column and direction against an allow list.
func orderClause(sortBy, order, def string, allowed ...string) string {
	column := def
	for _, a := range allowed {
		if a == sortBy {
			column = sortBy
			break
		}
	}
	if strings.EqualFold(order, "asc") {
		return column + " ASC"
	}
	return column + " DESC"
}
