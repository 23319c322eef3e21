package handlers

import (
	"net/http"

	"securedocs/models"
	"securedocs/services"
	"securedocs/utils"

	"github.com/gin-gonic/gin"
)

type verifyPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

func logShareAccess(c *gin.Context, share models.PublicShare, fileID uint, action string, bytes *int64) {
	getServices().Shares.LogAccess(c.Request.Context(), services.AccessEntry{
		Share:     share,
		FileID:    fileID,
		Action:    action,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Bytes:     bytes,
	})
}

// GetPublicShare describes the share behind :token. The item itself is only
// included once the caller holds a valid grant for protected shares.
func GetPublicShare(c *gin.Context) {
	svc := getServices()
	token := c.Param("token")
	summary, err := svc.Shares.Summarize(c.Request.Context(), token, shareGrant(c))
	if respondServiceError(c, err) {
		return
	}
	if summary.File != nil {
		if share, err := svc.Shares.ResolveShare(c.Request.Context(), token); err == nil {
			logShareAccess(c, share, summary.File.ID, models.ShareActionView, nil)
		}
	}
	utils.Success(c, summary)
}

func VerifySharePassword(c *gin.Context) {
	var req verifyPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	grant, err := getServices().Shares.VerifyPassword(c.Request.Context(), c.Param("token"), req.Password)
	if respondServiceError(c, err) {
		return
	}
	utils.Success(c, grant)
}

func DownloadShare(c *gin.Context) {
	item, err := getServices().Shares.Authorize(c.Request.Context(), c.Param("token"), shareGrant(c))
	if respondServiceError(c, err) {
		return
	}
	streamSharedItem(c, item)
}

func DownloadNestedFile(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	_, item, err := getServices().Nested.AuthorizeDescendant(c.Request.Context(), c.Param("token"), shareGrant(c), fileID)
	if respondServiceError(c, err) {
		return
	}
	streamSharedItem(c, item)
}

// streamSharedItem writes a file, or a folder as a zip archive. The share's
// download is counted before the first byte is sent.
func streamSharedItem(c *gin.Context, item services.SharedItem) {
	stream, err := getServices().Archive.Stream(c.Request.Context(), item)
	if respondServiceError(c, err) {
		return
	}
	defer stream.Reader.Close()

	var logged *int64
	if stream.Size >= 0 {
		size := stream.Size
		logged = &size
	}
	logShareAccess(c, item.Share, item.Node.ID, models.ShareActionDownload, logged)

	c.DataFromReader(http.StatusOK, stream.Size, stream.ContentType, stream.Reader, map[string]string{
		"Content-Disposition": services.AttachmentDisposition(stream.FileName),
	})
}

// BrowseSharedFolder lists one folder inside a shared folder tree, with
// breadcrumbs back to the shared root.
func BrowseSharedFolder(c *gin.Context) {
	folderID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	svc := getServices()
	root, err := svc.Shares.Authorize(c.Request.Context(), c.Param("token"), shareGrant(c))
	if respondServiceError(c, err) {
		return
	}
	page, pageSize := pageParams(c)
	view, err := svc.Nested.BrowseFolder(c.Request.Context(), root.Share, folderID, services.BrowseQuery{
		Search:   c.Query("q"),
		Page:     page,
		PageSize: pageSize,
	})
	if respondServiceError(c, err) {
		return
	}
	logShareAccess(c, root.Share, folderID, models.ShareActionView, nil)

	utils.Success(c, gin.H{
		"folder":      view.Folder,
		"share_token": view.ShareToken,
		"breadcrumbs": view.Breadcrumbs,
		"items":       view.Items,
		"pagination":  utils.NewPaginationData(view.Page, view.PageSize, view.Total),
	})
}

func DescribeSharedFile(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	svc := getServices()
	root, err := svc.Shares.Authorize(c.Request.Context(), c.Param("token"), shareGrant(c))
	if respondServiceError(c, err) {
		return
	}
	view, err := svc.Nested.DescribeFile(c.Request.Context(), root.Share, fileID)
	if respondServiceError(c, err) {
		return
	}
	logShareAccess(c, root.Share, fileID, models.ShareActionView, nil)
	utils.Success(c, view)
}

// SharedThumbnail renders a preview of the shared item, or of the
// descendant named by file_id when the share is a folder.
func SharedThumbnail(c *gin.Context) {
	svc := getServices()
	token := c.Param("token")
	fileID, ok := parseOptionalID(c, "file_id")
	if !ok {
		return
	}

	var (
		item services.SharedItem
		err  error
	)
	if fileID != nil {
		_, item, err = svc.Nested.AuthorizeDescendant(c.Request.Context(), token, shareGrant(c), *fileID)
	} else {
		item, err = svc.Shares.Authorize(c.Request.Context(), token, shareGrant(c))
	}
	if respondServiceError(c, err) {
		return
	}
	data, err := svc.Previews.Thumbnail(c.Request.Context(), item.Node)
	if respondServiceError(c, err) {
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// SaveShareToAccount copies the shared item into the caller's root folder.
func SaveShareToAccount(c *gin.Context) {
	item, err := getServices().Shares.Authorize(c.Request.Context(), c.Param("token"), shareGrant(c))
	if respondServiceError(c, err) {
		return
	}
	copySharedItem(c, item)
}

func SaveNestedFileToAccount(c *gin.Context) {
	fileID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	_, item, err := getServices().Nested.AuthorizeDescendant(c.Request.Context(), c.Param("token"), shareGrant(c), fileID)
	if respondServiceError(c, err) {
		return
	}
	copySharedItem(c, item)
}

func copySharedItem(c *gin.Context, item services.SharedItem) {
	node, err := getServices().Copies.CopyToAccount(c.Request.Context(), item.Share, c.GetUint("user_id"))
	if respondServiceError(c, err) {
		return
	}
	logShareAccess(c, item.Share, item.Node.ID, models.ShareActionCopy, nil)
	utils.Created(c, node)
}
