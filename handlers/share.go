package handlers

import (
	"securedocs/services"
	"securedocs/utils"

	"github.com/gin-gonic/gin"
)

type createShareRequest struct {
	FileID        uint   `json:"file_id" binding:"required"`
	IsOneTime     bool   `json:"is_one_time"`
	ExpiresInDays *int   `json:"expires_in_days"`
	Password      string `json:"password"`
	MaxDownloads  *int   `json:"max_downloads"`
}

func CreateShare(c *gin.Context) {
	userID := c.GetUint("user_id")
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	share, err := getServices().Shares.CreateShare(c.Request.Context(), services.CreateShareInput{
		FileID:        req.FileID,
		OwnerID:       userID,
		IsOneTime:     req.IsOneTime,
		ExpiresInDays: req.ExpiresInDays,
		Password:      req.Password,
		MaxDownloads:  req.MaxDownloads,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, share)
}

func ListMyShares(c *gin.Context) {
	userID := c.GetUint("user_id")
	page, pageSize := pageParams(c)
	result, err := getServices().Shares.ListMyShares(c.Request.Context(), userID, page, pageSize)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{
		"items":      result.Items,
		"pagination": utils.NewPaginationData(result.Page, result.PageSize, result.Total),
	})
}

// DeleteShare revokes a share together with the nested shares minted
// below it.
func DeleteShare(c *gin.Context) {
	userID := c.GetUint("user_id")
	shareID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if respondServiceError(c, getServices().Shares.DeleteShare(c.Request.Context(), userID, shareID)) {
		return
	}
	utils.SuccessWithMessage(c, "share deleted", nil)
}

func ListSharedWithMe(c *gin.Context) {
	userID := c.GetUint("user_id")
	page, pageSize := pageParams(c)
	result, err := getServices().Shares.ListSharedWithMe(c.Request.Context(), userID, page, pageSize)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{
		"items":      result.Items,
		"pagination": utils.NewPaginationData(result.Page, result.PageSize, result.Total),
	})
}
