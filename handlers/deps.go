package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"securedocs/logger"
	"securedocs/services"
	"securedocs/utils"

	"github.com/gin-gonic/gin"
)

var appServices *services.Container

func SetServices(container *services.Container) {
	appServices = container
}

func getServices() *services.Container {
	if appServices == nil {
		panic("services container is not initialized")
	}
	return appServices
}

// respondServiceError writes err as {code, message, kind, data}. Causes
// wrapped inside an AppError are logged, never returned to the client.
func respondServiceError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	var appErr *services.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		}
		utils.ErrorWithKind(c, appErr.HTTPCode, string(appErr.Kind), appErr.Message, appErr.Data)
		return true
	}
	logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	utils.ErrorWithKind(c, http.StatusInternalServerError, string(services.KindInternal), "internal error", nil)
	return true
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.ErrorWithKind(c, http.StatusBadRequest, string(services.KindValidation), "invalid "+name, nil)
		return 0, false
	}
	return uint(id), true
}

// parseOptionalID reads an optional id from the query string. Empty and
// "0" both mean the root level.
func parseOptionalID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" || raw == "0" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		utils.ErrorWithKind(c, http.StatusBadRequest, string(services.KindValidation), "invalid "+name, nil)
		return nil, false
	}
	v := uint(id)
	return &v, true
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	return page, pageSize
}

func shareGrant(c *gin.Context) string {
	if grant := c.GetHeader("X-Share-Grant"); grant != "" {
		return grant
	}
	return c.Query("grant")
}

func bindError(c *gin.Context, err error) {
	utils.ErrorWithKind(c, http.StatusBadRequest, string(services.KindValidation), "invalid request: "+err.Error(), nil)
}
