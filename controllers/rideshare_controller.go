package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type RideshareController struct {
	Rides *services.RideshareService
}

func NewRideshareController(rides *services.RideshareService) *RideshareController {
	return &RideshareController{Rides: rides}
}

func (rc *RideshareController) CreateRide(c *gin.Context) {
	var input services.CreateRideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	ride, err := rc.Rides.Create(c.Request.Context(), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, ride, "Ride created successfully")
}

func (rc *RideshareController) GetRides(c *gin.Context) {
	var query services.RideQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := rc.Rides.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (rc *RideshareController) GetRide(c *gin.Context) {
	view, err := rc.Rides.Get(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

func (rc *RideshareController) UpdateRide(c *gin.Context) {
	var input services.UpdateRideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	ride, err := rc.Rides.Update(c.Request.Context(), c.Param("id"), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ride, "Ride updated successfully")
}

func (rc *RideshareController) CancelRide(c *gin.Context) {
	if err := rc.Rides.Cancel(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Ride cancelled successfully")
}

func (rc *RideshareController) BookRide(c *gin.Context) {
	var input services.BookRideInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	booking, err := rc.Rides.Book(c.Request.Context(), c.Param("id"), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, booking, "Ride booked successfully")
}

func (rc *RideshareController) CompleteRide(c *gin.Context) {
	ride, err := rc.Rides.Complete(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ride, "Ride completed")
}

func (rc *RideshareController) CancelBooking(c *gin.Context) {
	if err := rc.Rides.CancelBooking(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Booking cancelled successfully")
}

func (rc *RideshareController) GetMyRides(c *gin.Context) {
	var query ownListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := rc.Rides.MyRides(c.Request.Context(), utils.GetUserID(c), query.Status, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (rc *RideshareController) GetMyBookings(c *gin.Context) {
	var query ownListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := rc.Rides.MyBookings(c.Request.Context(), utils.GetUserID(c), query.Status, query.Page, query.PageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}
