package handlers

import (
	"securedocs/utils"

	"github.com/gin-gonic/gin"
)

// ListTrash returns the owner's trash roots, newest first.
func ListTrash(c *gin.Context) {
	userID := c.GetUint("user_id")
	items, err := getServices().Hierarchy.ListTrash(c.Request.Context(), userID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, gin.H{"items": items})
}

// RestoreItem puts a trashed subtree back, renaming it when its old name
// has been taken in the meantime.
func RestoreItem(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	node, err := getServices().Hierarchy.Restore(c.Request.Context(), userID, nodeID)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "restored", node)
}

func PermanentDelete(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if respondServiceError(c, getServices().Hierarchy.Destroy(c.Request.Context(), userID, nodeID)) {
		return
	}
	utils.SuccessWithMessage(c, "permanently deleted", nil)
}
