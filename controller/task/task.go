package task

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mydayplanner/controller/respond"
	"mydayplanner/dto"
	"mydayplanner/model"
	"mydayplanner/services"
)

type Lifecycle interface {
	CreateTask(ctx context.Context, userID string, in services.TaskInput) (*services.TaskOutcome, error)
	UpdateTask(ctx context.Context, userID, taskID string, in services.TaskInput) (*services.TaskOutcome, error)
	GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error)
	ListTasks(ctx context.Context, userID string) ([]model.Tasks, error)
	DeleteTask(ctx context.Context, userID, taskID string) (*services.SyncResult, error)
	CompleteTask(ctx context.Context, userID, taskID string) (*services.TaskOutcome, error)
	SeedSampleTasks(ctx context.Context, userID string) ([]model.Tasks, error)
}

func TaskController(router *gin.Engine, tasks Lifecycle, auth gin.HandlerFunc) {
	group := router.Group("/tasks", auth)

	group.POST("", func(c *gin.Context) {
		var req dto.TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BindError(c, err)
			return
		}
		outcome, err := tasks.CreateTask(c.Request.Context(), respond.UserID(c), req.Input())
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, outcome)
	})

	group.GET("", func(c *gin.Context) {
		list, err := tasks.ListTasks(c.Request.Context(), respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		if list == nil {
			list = []model.Tasks{}
		}
		c.JSON(http.StatusOK, gin.H{"tasks": list})
	})

	group.POST("/samples", func(c *gin.Context) {
		samples, err := tasks.SeedSampleTasks(c.Request.Context(), respond.UserID(c))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"tasks": samples})
	})

	group.GET("/:taskId", func(c *gin.Context) {
		t, err := tasks.GetTask(c.Request.Context(), respond.UserID(c), c.Param("taskId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	})

	group.PUT("/:taskId", func(c *gin.Context) {
		var req dto.TaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BindError(c, err)
			return
		}
		outcome, err := tasks.UpdateTask(c.Request.Context(), respond.UserID(c), c.Param("taskId"), req.Input())
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	group.DELETE("/:taskId", func(c *gin.Context) {
		res, err := tasks.DeleteTask(c.Request.Context(), respond.UserID(c), c.Param("taskId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sync": res})
	})

	group.POST("/:taskId/complete", func(c *gin.Context) {
		outcome, err := tasks.CompleteTask(c.Request.Context(), respond.UserID(c), c.Param("taskId"))
		if err != nil {
			respond.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})
}
