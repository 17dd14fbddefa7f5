package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

func viewerFromContext(c *gin.Context) (models.Viewer, bool) {
	viewer, ok := middleware.ViewerFromContext(c)
	if !ok || (viewer.Email == "" && viewer.GrantDepartment == "") {
		return models.Viewer{}, false
	}
	return viewer, true
}

func parsePaging(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return page, size
}

func parseStatuses(raw string) []models.DocumentStatus {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]models.DocumentStatus, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		statuses = append(statuses, models.DocumentStatus(part))
	}
	return statuses
}
