package calendar

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mydayplanner/controller/respond"
	"mydayplanner/dto"
	"mydayplanner/model"
	"mydayplanner/services"
)

type VisibilityStore interface {
	SetCalendarVisibility(ctx context.Context, userID, calendarID string, enabled bool) (*model.CalendarSetting, error)
	CalendarsWithVisibility(ctx context.Context, userID string) ([]services.CalendarVisibility, error)
}

func CalendarController(router *gin.Engine, settings VisibilityStore, auth gin.HandlerFunc) {
	router.GET("/calendars", auth, func(c *gin.Context) {
		calendars, err := settings.CalendarsWithVisibility(c.Request.Context(), respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"calendars": calendars})
	})

	router.PUT("/calendars/:calendarId/visibility", auth, func(c *gin.Context) {
		var req dto.VisibilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BindError(c, err)
			return
		}
		setting, err := settings.SetCalendarVisibility(c.Request.Context(), respond.UserID(c), c.Param("calendarId"), *req.Enabled)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, setting)
	})
}
