package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the owner API under /api and the public share
// surface under /s. auth must set "user_id" on the context.
func RegisterRoutes(r *gin.Engine, auth gin.HandlerFunc) {
	RegisterValidators()

	api := r.Group("/api")
	api.GET("/health", HealthCheck)

	protected := api.Group("")
	protected.Use(auth)
	{
		protected.GET("/nodes", ListNodes)
		protected.POST("/nodes/folders", CreateFolder)
		protected.POST("/nodes/files", UploadFile)
		protected.GET("/nodes/:id", GetNode)
		protected.GET("/nodes/:id/thumbnail", NodeThumbnail)
		protected.PUT("/nodes/:id/rename", RenameNode)
		protected.PUT("/nodes/:id/move", MoveNode)
		protected.DELETE("/nodes/:id", DeleteNode)

		protected.GET("/trash", ListTrash)
		protected.POST("/trash/:id/restore", RestoreItem)
		protected.DELETE("/trash/:id", PermanentDelete)

		protected.POST("/shares", CreateShare)
		protected.GET("/shares", ListMyShares)
		protected.DELETE("/shares/:id", DeleteShare)
		protected.GET("/shared-with-me", ListSharedWithMe)
	}

	public := r.Group("/s/:token")
	{
		public.GET("", GetPublicShare)
		public.POST("/verify", VerifySharePassword)
		public.GET("/download", DownloadShare)
		public.GET("/thumbnail", SharedThumbnail)
		public.GET("/folders/:id", BrowseSharedFolder)
		public.GET("/files/:id", DescribeSharedFile)
		public.GET("/files/:id/download", DownloadNestedFile)
		public.POST("/save", auth, SaveShareToAccount)
		public.POST("/files/:id/save", auth, SaveNestedFileToAccount)
	}
}
