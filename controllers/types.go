package controllers

import (
	"net/http"
	"time"

	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type StandardResponse struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Meta    *utils.ResponseMeta `json:"meta,omitempty"`
	Message string              `json:"message,omitempty"`
}

func responseMeta(c *gin.Context) *utils.ResponseMeta {
	return &utils.ResponseMeta{
		Timestamp: time.Now().UTC(),
		RequestID: c.GetString(utils.RequestIDKey),
	}
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, StandardResponse{Success: true, Data: data, Meta: responseMeta(c), Message: message})
}

func respondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, data, "")
}

func respondCreated(c *gin.Context, data interface{}, message string) {
	respond(c, http.StatusCreated, data, message)
}

func respondError(c *gin.Context, err error) {
	utils.AbortWithError(c, err)
}

// bindError reports a failed ShouldBind* call as a 400 VALIDATION_ERROR.
func bindError(c *gin.Context, err error) {
	utils.AbortWithError(c, utils.NewValidationError(err.Error()))
}

// ownListQuery binds the filters shared by the "my ..." listings.
type ownListQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"pageSize,default=20" binding:"min=1,max=100"`
}
