package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type ActivityController struct {
	Activities *services.ActivityService
}

func NewActivityController(activities *services.ActivityService) *ActivityController {
	return &ActivityController{Activities: activities}
}

func (ac *ActivityController) CreateActivity(c *gin.Context) {
	var input services.CreateActivityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	activity, err := ac.Activities.Create(c.Request.Context(), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, activity, "Activity created successfully")
}

func (ac *ActivityController) GetActivities(c *gin.Context) {
	var query services.ActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := ac.Activities.List(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (ac *ActivityController) SearchActivities(c *gin.Context) {
	var query services.ActivitySearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := ac.Activities.Search(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}

func (ac *ActivityController) GetMeta(c *gin.Context) {
	respondOK(c, ac.Activities.Meta())
}

func (ac *ActivityController) GetActivity(c *gin.Context) {
	view, err := ac.Activities.Get(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, view)
}

func (ac *ActivityController) UpdateActivity(c *gin.Context) {
	var input services.UpdateActivityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	activity, err := ac.Activities.Update(c.Request.Context(), c.Param("id"), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, activity, "Activity updated successfully")
}

func (ac *ActivityController) PublishActivity(c *gin.Context) {
	activity, err := ac.Activities.Publish(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, activity, "Activity published successfully")
}

// CancelActivity backs DELETE /activities/:id. The row is kept with status cancelled.
func (ac *ActivityController) CancelActivity(c *gin.Context) {
	activity, err := ac.Activities.Cancel(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, activity, "Activity cancelled successfully")
}

func (ac *ActivityController) Register(c *gin.Context) {
	participation, err := ac.Activities.Register(c.Request.Context(), c.Param("id"), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, participation, "Registered successfully")
}

func (ac *ActivityController) CancelRegistration(c *gin.Context) {
	if err := ac.Activities.CancelRegistration(c.Request.Context(), c.Param("id"), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Registration cancelled successfully")
}

func (ac *ActivityController) Checkin(c *gin.Context) {
	var input struct {
		Code string `json:"checkinCode" binding:"max=16"`
	}
	// The body is optional when no code is sent.
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		bindError(c, err)
		return
	}

	result, err := ac.Activities.Checkin(c.Request.Context(), c.Param("id"), utils.GetUserID(c), input.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Checked in successfully")
}

func (ac *ActivityController) GetParticipants(c *gin.Context) {
	participants, err := ac.Activities.Participants(c.Request.Context(), c.Param("id"), utils.GetUserID(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"participants": participants, "total": len(participants)})
}

func (ac *ActivityController) GetMyActivities(c *gin.Context) {
	var query services.MyActivitiesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	list, err := ac.Activities.MyActivities(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, list)
}
