package services

import (
	"context"

	"mydayplanner/model"
)

type TaskStore interface {
	GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error)
	ListTasks(ctx context.Context, userID string) ([]model.Tasks, error)
	SaveTask(ctx context.Context, task *model.Tasks) error
	DeleteTask(ctx context.Context, userID, taskID string) error
	SetTaskMirror(ctx context.Context, userID, taskID, eventID, calendarID string) error
	MarkSyncPending(ctx context.Context, userID, taskID string, pending bool) error
	ListSyncPending(ctx context.Context, limit int) ([]model.Tasks, error)
}

type IntegrationStore interface {
	GetIntegration(ctx context.Context, userID string, provider model.Provider) (*model.Integration, error)
	SaveIntegration(ctx context.Context, integration *model.Integration) error
	// SaveRefreshedToken writes new token material only while the stored record is still
	// connected with previousRefreshToken, and returns repository.ErrConflict otherwise.
	SaveRefreshedToken(ctx context.Context, integration *model.Integration, previousRefreshToken string) error
}

type SettingStore interface {
	UpsertCalendarSetting(ctx context.Context, setting *model.CalendarSetting) error
	ListCalendarSettings(ctx context.Context, userID string) ([]model.CalendarSetting, error)
}
