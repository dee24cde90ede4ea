package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupValidationRoutes(public *gin.RouterGroup, validationController *controllers.ValidationController) {
	validation := public.Group("/validation")
	{
		validation.GET("/email/:email", validationController.ValidateEmail)
	}
}
