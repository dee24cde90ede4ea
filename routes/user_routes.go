package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupUserRoutes(protected *gin.RouterGroup, userController *controllers.UserController) {
	users := protected.Group("/users")
	{
		users.GET("/profile", userController.GetProfile)
		users.PUT("/profile", userController.UpdateProfile)
		users.POST("/batch", userController.GetUsersBatch)
		users.GET("/:id", userController.GetUser)
	}
}
