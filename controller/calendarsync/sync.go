package calendarsync

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mydayplanner/controller/respond"
	"mydayplanner/dto"
	"mydayplanner/services"
)

type Exporter interface {
	ExportTasks(ctx context.Context, userID string, taskIDs []string) ([]services.SyncResult, error)
	DeleteRemoteEvent(ctx context.Context, userID, calendarID, eventID string) (services.SyncResult, error)
}

func SyncController(router *gin.Engine, sync Exporter, auth gin.HandlerFunc) {
	group := router.Group("/sync", auth)

	group.POST("/export", func(c *gin.Context) {
		var req dto.ExportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BindError(c, err)
			return
		}
		results, err := sync.ExportTasks(c.Request.Context(), respond.UserID(c), req.TaskIDs)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	group.DELETE("/events/:calendarId/:eventId", func(c *gin.Context) {
		res, err := sync.DeleteRemoteEvent(c.Request.Context(), respond.UserID(c), c.Param("calendarId"), c.Param("eventId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
