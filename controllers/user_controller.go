package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type UserController struct {
	Users *services.UserService
}

func NewUserController(users *services.UserService) *UserController {
	return &UserController{Users: users}
}

func (uc *UserController) GetProfile(c *gin.Context) {
	user, err := uc.Users.Profile(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, user)
}

func (uc *UserController) UpdateProfile(c *gin.Context) {
	var input services.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	user, err := uc.Users.UpdateProfile(c.Request.Context(), utils.GetUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, user, "Profile updated successfully")
}

func (uc *UserController) GetUser(c *gin.Context) {
	profile, err := uc.Users.GetPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, profile)
}

func (uc *UserController) GetUsersBatch(c *gin.Context) {
	var input services.BatchUsersInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	users, err := uc.Users.Batch(c.Request.Context(), input.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, users)
}
