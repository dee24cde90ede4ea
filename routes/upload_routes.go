package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupUploadRoutes(protected *gin.RouterGroup, uploadController *controllers.UploadController) {
	upload := protected.Group("/uploads")
	{
		upload.POST("/presigned-url", uploadController.GetPresignedURL)
		upload.POST("/presigned-urls", uploadController.GetMultiplePresignedURLs)
		upload.POST("/confirm", uploadController.ConfirmUpload)

		// Keys contain slashes, e.g. items/{userId}/{uuid}.jpg
		upload.DELETE("/*key", uploadController.DeleteFile)
	}
}
