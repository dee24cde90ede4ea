package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/campusride/api-go/middleware"
	"github.com/campusride/api-go/models"
	"github.com/gin-gonic/gin"
)

func SetupPointsRoutes(protected *gin.RouterGroup, pointsController *controllers.PointsController, leaderboardController *controllers.LeaderboardController) {
	points := protected.Group("/points")
	{
		points.GET("/me", pointsController.GetMyPoints)
		points.GET("/transactions", pointsController.GetTransactions)
		points.GET("/statistics", pointsController.GetStatistics)
		points.GET("/leaderboard", leaderboardController.GetLeaderboard)
		points.GET("/rules", pointsController.GetRules)
		points.POST("/daily-login", pointsController.DailyLogin)
		points.POST("/transfer", pointsController.Transfer)

		// Moderation
		points.POST("/award", middleware.RequireRole(models.RoleModerator), pointsController.Award)
		points.POST("/deduct", middleware.RequireRole(models.RoleModerator), pointsController.Deduct)
		points.GET("/reconcile/:userId", middleware.RequireRole(models.RoleAdmin), pointsController.Reconcile)

		points.GET("/:userId", pointsController.GetUserPoints)
	}
}
