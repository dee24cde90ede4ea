package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupAuthRoutes(v1 *gin.RouterGroup, requireAuth gin.HandlerFunc, authController *controllers.AuthController) {
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/refresh", authController.RefreshToken)
		auth.GET("/verify-email/:token", authController.VerifyEmail)
		auth.POST("/resend-verification", authController.ResendVerification)
		auth.POST("/google", authController.GoogleLogin)
		auth.POST("/logout", requireAuth, authController.Logout)
	}
}
