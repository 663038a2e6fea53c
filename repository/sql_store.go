package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mydayplanner/model"
)

// SQLStore is the gorm-backed store used for local development.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error) {
	var task model.Tasks
	err := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

func (s *SQLStore) ListTasks(ctx context.Context, userID string) ([]model.Tasks, error) {
	var tasks []model.Tasks
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("due_date ASC, created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLStore) SaveTask(ctx context.Context, task *model.Tasks) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(task).Error; err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND task_id = ?", userID, taskID).Delete(&model.Tasks{})
	if res.Error != nil {
		return fmt.Errorf("delete task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) SetTaskMirror(ctx context.Context, userID, taskID, eventID, calendarID string) error {
	return s.updateTask(ctx, userID, taskID, map[string]interface{}{
		"google_calendar_event_id": eventID,
		"google_calendar_id":       calendarID,
		"sync_pending":             false,
	})
}

func (s *SQLStore) MarkSyncPending(ctx context.Context, userID, taskID string, pending bool) error {
	return s.updateTask(ctx, userID, taskID, map[string]interface{}{
		"sync_pending": pending,
	})
}

func (s *SQLStore) ListSyncPending(ctx context.Context, limit int) ([]model.Tasks, error) {
	var tasks []model.Tasks
	if err := s.db.WithContext(ctx).Where("sync_pending = ?", true).
		Order("updated_at ASC").
		Limit(limit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLStore) updateTask(ctx context.Context, userID, taskID string, updates map[string]interface{}) error {
	updates["updated_at"] = s.now()
	res := s.db.WithContext(ctx).Model(&model.Tasks{}).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetIntegration(ctx context.Context, userID string, provider model.Provider) (*model.Integration, error) {
	var integration model.Integration
	err := s.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find integration: %w", err)
	}
	return &integration, nil
}

// SaveIntegration replaces the whole credential row, creating it on first connect.
func (s *SQLStore) SaveIntegration(ctx context.Context, integration *model.Integration) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(integration).Error; err != nil {
		return fmt.Errorf("save integration: %w", err)
	}
	return nil
}

// SaveRefreshedToken is a compare-and-set on the refresh token, so a disconnect or reconnect
// that landed during the exchange is never overwritten.
func (s *SQLStore) SaveRefreshedToken(ctx context.Context, integration *model.Integration, previousRefreshToken string) error {
	res := s.db.WithContext(ctx).Model(&model.Integration{}).
		Where("user_id = ? AND provider = ? AND connected = ? AND refresh_token = ?",
			integration.UserID, integration.Provider, true, previousRefreshToken).
		Updates(map[string]interface{}{
			"access_token":     integration.AccessToken,
			"refresh_token":    integration.RefreshToken,
			"token_expires_at": integration.TokenExpiresAt,
			"updated_at":       integration.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save refreshed token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// UpsertCalendarSetting is a single INSERT ... ON CONFLICT on the (user_id, calendar_id) key.
func (s *SQLStore) UpsertCalendarSetting(ctx context.Context, setting *model.CalendarSetting) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "calendar_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_at"}),
	}).Create(setting).Error
	if err != nil {
		return fmt.Errorf("upsert calendar setting: %w", err)
	}
	return nil
}

func (s *SQLStore) ListCalendarSettings(ctx context.Context, userID string) ([]model.CalendarSetting, error) {
	var settings []model.CalendarSetting
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("calendar_id ASC").
		Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("list calendar settings: %w", err)
	}
	return settings, nil
}
