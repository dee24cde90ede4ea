package controllers

import (
	"log/slog"

	"github.com/campusride/api-go/middleware"
	"github.com/campusride/api-go/realtime"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type SocketController struct {
	Auth     middleware.Authenticator
	Hub      *realtime.Hub
	Upgrader *websocket.Upgrader
}

func NewSocketController(auth middleware.Authenticator, hub *realtime.Hub, allowedOrigins []string) *SocketController {
	return &SocketController{Auth: auth, Hub: hub, Upgrader: realtime.NewUpgrader(allowedOrigins)}
}

// Connect authenticates before upgrading, so a bad token gets a normal JSON 401.
func (sc *SocketController) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = middleware.BearerToken(c)
	}
	if token == "" {
		respondError(c, utils.NewUnauthorized(utils.CodeTokenInvalid, "Authentication token is required"))
		return
	}

	claims, err := sc.Auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := sc.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("websocket upgrade failed", "user_id", claims.UserID, "error", err)
		return
	}
	sc.Hub.Attach(conn, claims.UserID)
}
