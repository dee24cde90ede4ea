package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// OnlineCounter reports live socket connections.
type OnlineCounter interface {
	OnlineCount() int
}

type HealthController struct {
	DB        *gorm.DB
	Online    OnlineCounter
	StartedAt time.Time
}

func NewHealthController(db *gorm.DB, online OnlineCounter) *HealthController {
	return &HealthController{DB: db, Online: online, StartedAt: time.Now()}
}

func (hc *HealthController) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "CampusRide API",
		"message": "CampusRide API is running",
	})
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := hc.ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     err.Error(),
			"timestamp": time.Now().UTC(),
		})
		return
	}

	online := 0
	if hc.Online != nil {
		online = hc.Online.OnlineCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"database":     "connected",
		"uptime":       time.Since(hc.StartedAt).Round(time.Second).String(),
		"online_users": online,
		"timestamp":    time.Now().UTC(),
	})
}

func (hc *HealthController) ping(ctx context.Context) error {
	sqlDB, err := hc.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
