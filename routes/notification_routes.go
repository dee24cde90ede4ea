package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/campusride/api-go/middleware"
	"github.com/campusride/api-go/models"
	"github.com/gin-gonic/gin"
)

func SetupNotificationRoutes(protected *gin.RouterGroup, notificationController *controllers.NotificationController) {
	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationController.GetNotifications)
		notifications.GET("/unread-count", notificationController.GetUnreadCount)
		notifications.PUT("/mark-all-read", notificationController.MarkAllAsRead)
		notifications.PUT("/:id/read", notificationController.MarkAsRead)
		notifications.DELETE("/:id", notificationController.DeleteNotification)
		notifications.POST("/broadcast", middleware.RequireRole(models.RoleAdmin), notificationController.Broadcast)
	}
}
