package routes

import (
	"github.com/campusride/api-go/controllers"
	"github.com/gin-gonic/gin"
)

func SetupRideshareRoutes(public, protected *gin.RouterGroup, rideshareController *controllers.RideshareController) {
	browse := public.Group("/rides")
	{
		browse.GET("", rideshareController.GetRides)
		browse.GET("/:id", rideshareController.GetRide)
	}

	rides := protected.Group("/rides")
	{
		rides.POST("", rideshareController.CreateRide)
		rides.GET("/my", rideshareController.GetMyRides)
		rides.PUT("/:id", rideshareController.UpdateRide)
		rides.DELETE("/:id", rideshareController.CancelRide)
		rides.POST("/:id/book", rideshareController.BookRide)
		rides.POST("/:id/complete", rideshareController.CompleteRide)
	}

	bookings := protected.Group("/bookings")
	{
		bookings.GET("/my", rideshareController.GetMyBookings)
		bookings.DELETE("/:id", rideshareController.CancelBooking)
	}
}
