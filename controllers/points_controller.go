package controllers

import (
	"net/http"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/types"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type PointsController struct {
	Points *services.PointsService
}

func NewPointsController(points *services.PointsService) *PointsController {
	return &PointsController{Points: points}
}

func (pc *PointsController) GetMyPoints(c *gin.Context) {
	summary, err := pc.Points.Balance(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

func (pc *PointsController) GetUserPoints(c *gin.Context) {
	summary, err := pc.Points.Balance(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, summary)
}

func (pc *PointsController) GetTransactions(c *gin.Context) {
	var query services.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	history, err := pc.Points.History(c.Request.Context(), utils.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, history)
}

func (pc *PointsController) GetStatistics(c *gin.Context) {
	var query struct {
		Period string `form:"period" binding:"omitempty,oneof=week month year"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		bindError(c, err)
		return
	}

	stats, err := pc.Points.Statistics(c.Request.Context(), utils.GetUserID(c), query.Period)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, stats)
}

func (pc *PointsController) GetRules(c *gin.Context) {
	respondOK(c, gin.H{"rules": types.GetPointRules()})
}

func (pc *PointsController) DailyLogin(c *gin.Context) {
	result, err := pc.Points.DailyLogin(c.Request.Context(), utils.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if result.AlreadyRewarded {
		respond(c, http.StatusOK, result, "Daily login reward already claimed today")
		return
	}
	respond(c, http.StatusOK, result, "Daily login reward claimed")
}

func (pc *PointsController) Transfer(c *gin.Context) {
	var input struct {
		ToUserID string `json:"toUserId" binding:"required"`
		Amount   int64  `json:"amount" binding:"required,min=1"`
		Reason   string `json:"reason" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	result, err := pc.Points.Transfer(c.Request.Context(), utils.GetUserID(c), input.ToUserID, input.Amount, input.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Points transferred successfully")
}

// Award and Deduct are moderator tools; the caller is recorded in the ledger metadata.
func (pc *PointsController) Award(c *gin.Context) {
	var input services.AwardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	input.Metadata = withActor(input.Metadata, utils.GetUserID(c))

	result, err := pc.Points.Award(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Points awarded")
}

func (pc *PointsController) Deduct(c *gin.Context) {
	var input services.DeductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	input.Metadata = withActor(input.Metadata, utils.GetUserID(c))

	result, err := pc.Points.Deduct(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result, "Points deducted")
}

func (pc *PointsController) Reconcile(c *gin.Context) {
	report, err := pc.Points.Reconcile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, report)
}

func withActor(metadata map[string]interface{}, actorID string) map[string]interface{} {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["actor_id"] = actorID
	return metadata
}
