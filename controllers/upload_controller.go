package controllers

import (
	"net/http"
	"strings"

	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-gonic/gin"
)

type UploadController struct {
	Uploads *services.UploadService
}

type MultipleUploadRequest struct {
	Files []services.PresignInput `json:"files" binding:"required,min=1,max=10,dive"`
}

type UploadConfirmRequest struct {
	Key string `json:"key" binding:"required"`
}

func NewUploadController(uploads *services.UploadService) *UploadController {
	return &UploadController{Uploads: uploads}
}

func (uc *UploadController) GetPresignedURL(c *gin.Context) {
	var req services.PresignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	upload, err := uc.Uploads.Presign(c.Request.Context(), utils.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, upload)
}

// GetMultiplePresignedURLs signs every file or none of them.
func (uc *UploadController) GetMultiplePresignedURLs(c *gin.Context) {
	var req MultipleUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	userID := utils.GetUserID(c)
	files := make([]*services.PresignedUpload, 0, len(req.Files))
	for _, file := range req.Files {
		upload, err := uc.Uploads.Presign(c.Request.Context(), userID, file)
		if err != nil {
			respondError(c, err)
			return
		}
		files = append(files, upload)
	}
	respondOK(c, gin.H{"files": files})
}

func (uc *UploadController) ConfirmUpload(c *gin.Context) {
	var req UploadConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	info, err := uc.Uploads.Confirm(c.Request.Context(), utils.GetUserID(c), req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, info, "Upload confirmed")
}

// DeleteFile is mounted on a catch-all so keys keep their slashes.
func (uc *UploadController) DeleteFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := uc.Uploads.Delete(c.Request.Context(), utils.GetUserID(c), key); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, nil, "File deleted successfully")
}
