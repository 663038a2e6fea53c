package integration

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mydayplanner/controller/respond"
	"mydayplanner/dto"
	"mydayplanner/services"
)

type OAuthFlow interface {
	AuthURL(userID string) (string, error)
	ExchangeCode(ctx context.Context, code, userID, callbackURL string) (*services.IntegrationStatus, error)
	Disconnect(ctx context.Context, userID string) (*services.IntegrationStatus, error)
	Status(ctx context.Context, userID string) (*services.IntegrationStatus, error)
	SelectCalendar(ctx context.Context, userID, calendarID string) (*services.IntegrationStatus, error)
}

func GoogleIntegrationController(router *gin.Engine, flow OAuthFlow, auth gin.HandlerFunc) {
	group := router.Group("/integrations/google", auth)

	group.GET("/auth-url", func(c *gin.Context) {
		url, err := flow.AuthURL(respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.AuthURLResponse{URL: url})
	})

	group.POST("/callback", func(c *gin.Context) {
		GoogleCallback(c, flow)
	})

	group.POST("/disconnect", func(c *gin.Context) {
		status, err := flow.Disconnect(c.Request.Context(), respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	group.GET("/status", func(c *gin.Context) {
		status, err := flow.Status(c.Request.Context(), respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	group.PUT("/calendar", func(c *gin.Context) {
		var req dto.SelectCalendarRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BindError(c, err)
			return
		}
		status, err := flow.SelectCalendar(c.Request.Context(), respond.UserID(c), req.CalendarID)
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}

// GoogleCallback finishes the consent flow. The state must be the signed-in user's id.
func GoogleCallback(c *gin.Context, flow OAuthFlow) {
	var req dto.OAuthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	userID := respond.UserID(c)
	if req.State != userID {
		respond.Error(c, &services.ValidationError{Field: "state", Message: "does not match the signed-in user"})
		return
	}

	status, err := flow.ExchangeCode(c.Request.Context(), req.Code, userID, req.RedirectURI)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
