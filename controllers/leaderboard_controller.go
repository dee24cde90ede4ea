package controllers

import (
	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	Points *services.PointsService
}

func NewLeaderboardController(points *services.PointsService) *LeaderboardController {
	return &LeaderboardController{Points: points}
}

func (lc *LeaderboardController) GetLeaderboard(c *gin.Context) {
	var query services.LeaderboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	board, err := lc.Points.Leaderboard(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, board)
}
