package controllers

import (
	"github.com/campusride/api-go/services"
	"github.com/gin-gonic/gin"
)

type ValidationController struct {
	Auth *services.AuthService
}

func NewValidationController(auth *services.AuthService) *ValidationController {
	return &ValidationController{Auth: auth}
}

// ValidateEmail tells the sign-up form whether an address is on the campus domain and still free.
func (vc *ValidationController) ValidateEmail(c *gin.Context) {
	check, err := vc.Auth.CheckEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, check)
}
