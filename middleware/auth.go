package middleware

import (
	"context"
	"strings"

	"github.com/campusride/api-go/models"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*utils.UserClaims, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			utils.AbortWithError(c, utils.NewUnauthorized(utils.CodeTokenInvalid, "Authorization header is required"))
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.SetUser(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and never rejects.
func OptionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := BearerToken(c); token != "" {
			if claims, err := auth.Authenticate(c.Request.Context(), token); err == nil {
				utils.SetUser(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := utils.GetUser(c)
		if user == nil {
			utils.AbortWithError(c, utils.NewUnauthorized(utils.CodeTokenInvalid, "Authentication required"))
			return
		}
		if !models.Role(user.Role).AtLeast(min) {
			utils.AbortWithError(c, utils.NewForbidden("Insufficient permissions"))
			return
		}
		c.Next()
	}
}

// RejectDemo must run after AuthMiddleware. The demo account has no stored profile, so
// features backed by the user's own records answer 403 instead of a confusing 404.
func RejectDemo() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := utils.GetUser(c); user != nil && user.Demo {
			utils.AbortWithError(c, utils.NewForbidden("The demo account cannot use this feature. Sign up to continue"))
			return
		}
		c.Next()
	}
}
