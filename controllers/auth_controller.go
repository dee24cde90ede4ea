package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	Auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{Auth: auth}
}

func (ac *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := ac.Auth.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.TokenPair != nil {
		respondOK(c, result)
		return
	}
	respondCreated(c, result, "Registration successful. Please check your email to verify your account.")
}

func (ac *AuthController) Login(c *gin.Context) {
	var input services.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := ac.Auth.Login(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Login successful")
}

func (ac *AuthController) Logout(c *gin.Context) {
	if err := ac.Auth.Logout(c.Request.Context(), utils.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "Logged out successfully")
}

func (ac *AuthController) RefreshToken(c *gin.Context) {
	var input struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := ac.Auth.Refresh(c.Request.Context(), input.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, result)
}

func (ac *AuthController) VerifyEmail(c *gin.Context) {
	result, err := ac.Auth.VerifyEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	if result.AlreadyVerified {
		respond(c, http.StatusOK, result, "Email is already verified")
		return
	}
	respond(c, http.StatusOK, result, "Email verified successfully")
}

func (ac *AuthController) ResendVerification(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	ac.Auth.ResendVerification(c.Request.Context(), input.Email)
	respond(c, http.StatusOK, nil, "If an unverified account exists for this email, a verification link has been sent.")
}

func (ac *AuthController) GoogleLogin(c *gin.Context) {
	var input struct {
		IDToken string `json:"idToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := ac.Auth.GoogleLogin(c.Request.Context(), input.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Login successful")
}
