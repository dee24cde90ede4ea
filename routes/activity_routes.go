package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupActivityRoutes(public, protected *gin.RouterGroup, activityController *controllers.ActivityController) {
	browse := public.Group("/activities")
	{
		browse.GET("", activityController.GetActivities)
		browse.GET("/search", activityController.SearchActivities)
		browse.GET("/meta", activityController.GetMeta)
		browse.GET("/:id", activityController.GetActivity)
	}

	activities := protected.Group("/activities")
	{
		activities.POST("", activityController.CreateActivity)
		activities.GET("/my", activityController.GetMyActivities)
		activities.PUT("/:id", activityController.UpdateActivity)
		activities.DELETE("/:id", activityController.CancelActivity)
		activities.POST("/:id/publish", activityController.PublishActivity)

		// Participation
		activities.POST("/:id/register", activityController.Register)
		activities.DELETE("/:id/register", activityController.CancelRegistration)
		activities.POST("/:id/checkin", activityController.Checkin)
		activities.GET("/:id/participants", activityController.GetParticipants)
	}
}
