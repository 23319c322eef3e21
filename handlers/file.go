package handlers

import (
	"net/http"
	"strconv"

	"securedocs/services"
	"securedocs/utils"

	"github.com/gin-gonic/gin"
)

type createFolderRequest struct {
	Name     string `json:"name" binding:"required,nodename"`
	ParentID *uint  `json:"parent_id"`
}

type renameNodeRequest struct {
	Name string `json:"name" binding:"required,nodename"`
}

// moveNodeRequest uses a null or missing parent_id for the root level.
type moveNodeRequest struct {
	ParentID *uint `json:"parent_id"`
}

// ListNodes lists the live children of parent_id, folders first.
func ListNodes(c *gin.Context) {
	userID := c.GetUint("user_id")
	parentID, ok := parseOptionalID(c, "parent_id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	result, err := getServices().Hierarchy.ListChildren(c.Request.Context(), services.ListChildrenQuery{
		OwnerID:  userID,
		ParentID: parentID,
		Search:   c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if respondServiceError(c, err) {
		return
	}

	utils.Success(c, gin.H{
		"items":      result.Items,
		"pagination": utils.NewPaginationData(result.Page, result.PageSize, result.Total),
	})
}

func CreateFolder(c *gin.Context) {
	userID := c.GetUint("user_id")
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	node, err := getServices().Hierarchy.CreateNode(c.Request.Context(), services.CreateNodeInput{
		OwnerID:  userID,
		Name:     req.Name,
		ParentID: req.ParentID,
		IsFolder: true,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, node)
}

// UploadFile stores the multipart "file" field under parent_id. An optional
// "name" field overrides the client filename.
func UploadFile(c *gin.Context) {
	userID := c.GetUint("user_id")
	header, err := c.FormFile("file")
	if err != nil {
		utils.ErrorWithKind(c, http.StatusBadRequest, string(services.KindValidation), "file is required", nil)
		return
	}

	var parentID *uint
	if raw := c.PostForm("parent_id"); raw != "" && raw != "0" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.ErrorWithKind(c, http.StatusBadRequest, string(services.KindValidation), "invalid parent_id", nil)
			return
		}
		v := uint(id)
		parentID = &v
	}
	name := c.PostForm("name")
	if name == "" {
		name = header.Filename
	}

	src, err := header.Open()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	defer src.Close()

	node, err := getServices().Hierarchy.UploadFile(c.Request.Context(), services.UploadFileInput{
		OwnerID:  userID,
		ParentID: parentID,
		Name:     name,
		MimeType: header.Header.Get("Content-Type"),
		Content:  src,
	})
	if respondServiceError(c, err) {
		return
	}
	utils.Created(c, node)
}

func GetNode(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	node, err := getServices().Hierarchy.GetNode(c.Request.Context(), userID, nodeID)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, node)
}

func RenameNode(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req renameNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	node, err := getServices().Hierarchy.Rename(c.Request.Context(), userID, nodeID, req.Name)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "renamed", node)
}

func MoveNode(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req moveNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.ParentID != nil && *req.ParentID == 0 {
		req.ParentID = nil
	}

	node, err := getServices().Hierarchy.Move(c.Request.Context(), userID, nodeID, req.ParentID)
	if respondServiceError(c, err) {
		return
	}
	utils.SuccessWithMessage(c, "moved", node)
}

// DeleteNode moves a node and its subtree to the trash.
func DeleteNode(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if respondServiceError(c, getServices().Hierarchy.SoftDelete(c.Request.Context(), userID, nodeID)) {
		return
	}
	utils.SuccessWithMessage(c, "moved to trash", nil)
}

func NodeThumbnail(c *gin.Context) {
	userID := c.GetUint("user_id")
	nodeID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	svc := getServices()
	node, err := svc.Hierarchy.GetNode(c.Request.Context(), userID, nodeID)
	if respondServiceError(c, err) {
		return
	}
	data, err := svc.Previews.Thumbnail(c.Request.Context(), node)
	if respondServiceError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}
