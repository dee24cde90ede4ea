package utils

import (
	"github.com/gin-gonic/gin"
)

// UserClaims is what the auth middleware stores on the request context.
type UserClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	// Demo marks the shared demo account, which has no database row.
	Demo bool `json:"demo,omitempty"`
}

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(c *gin.Context) *UserClaims {
	user, exists := c.Get(string(UserContextKey))
	if !exists {
		return nil
	}
	if userClaims, ok := user.(*UserClaims); ok {
		return userClaims
	}
	return nil
}

// GetUserID returns the authenticated user id, or "" for anonymous requests.
func GetUserID(c *gin.Context) string {
	if user := GetUser(c); user != nil {
		return user.UserID
	}
	return ""
}

func SetUser(c *gin.Context, claims *UserClaims) {
	c.Set(string(UserContextKey), claims)
}
