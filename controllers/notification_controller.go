package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

func (nc *NotificationController) GetNotifications(c *gin.Context) {
	var query services.NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := nc.Notifications.List(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (nc *NotificationController) GetUnreadCount(c *gin.Context) {
	count, err := nc.Notifications.UnreadCount(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"unread_count": count})
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	if err := nc.Notifications.MarkRead(c.Request.Context(), utils.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Notification marked as read")
}

func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	updated, err := nc.Notifications.MarkAllRead(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": updated}, "All notifications marked as read")
}

func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	if err := nc.Notifications.Delete(c.Request.Context(), utils.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Notification deleted")
}

func (nc *NotificationController) Broadcast(c *gin.Context) {
	var input struct {
		Type     string                 `json:"type"`
		Title    string                 `json:"title" binding:"max=255"`
		Message  string                 `json:"message" binding:"max=2000"`
		Data     map[string]interface{} `json:"data"`
		Channels []string               `json:"channels" binding:"omitempty,dive,oneof=socket database email"`
		Priority string                 `json:"priority" binding:"omitempty,oneof=low normal high"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	if input.Type == "" {
		input.Type = services.NotificationSystemAnnouncement
	}

	stored, err := nc.Notifications.Broadcast(c.Request.Context(), services.NotificationInput{
		Type:     input.Type,
		Title:    input.Title,
		Message:  input.Message,
		Data:     input.Data,
		Channels: input.Channels,
		Priority: input.Priority,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"recipients": stored}, "Broadcast sent")
}
