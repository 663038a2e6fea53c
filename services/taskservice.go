package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"mydayplanner/model"
	"mydayplanner/repository"
)

// TaskSyncer is the part of the sync orchestrator the task lifecycle drives.
type TaskSyncer interface {
	LockTask(userID, taskID string) (unlock func())
	ExportTask(ctx context.Context, userID, taskID string) (SyncResult, error)
	DeleteTaskEvent(ctx context.Context, task *model.Tasks) (SyncResult, error)
}

type TaskInput struct {
	Title       string
	Description string
	Tags        []string
	DueDate     string
	StartTime   *string
	EndTime     *string
	IsAllDay    bool
	Recurring   *model.Recurrence
}

// TaskOutcome carries the stored task and, when one ran, the mirror sync that followed it.
type TaskOutcome struct {
	Task *model.Tasks `json:"task"`
	Sync *SyncResult  `json:"sync,omitempty"`
}

type TaskService struct {
	tasks      TaskStore
	sync       TaskSyncer
	recurrence *RecurrenceEngine
	location   *time.Location
	now        func() time.Time
	newID      func() string
	log        *zap.Logger
}

func NewTaskService(tasks TaskStore, syncer TaskSyncer, recurrence *RecurrenceEngine, location *time.Location, log *zap.Logger) *TaskService {
	if location == nil {
		location = time.UTC
	}
	return &TaskService{
		tasks:      tasks,
		sync:       syncer,
		recurrence: recurrence,
		location:   location,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
		log:        log,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, in TaskInput) (*TaskOutcome, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := validateTaskInput(in); err != nil {
		return nil, err
	}
	now := s.now()
	task := &model.Tasks{
		TaskID:    s.newID(),
		UserID:    userID,
		Origin:    model.OriginPersisted,
		CreatedAt: now,
	}
	applyInput(task, in)
	task.UpdatedAt = now

	if err := s.tasks.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return s.exportAfterSave(ctx, task), nil
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, in TaskInput) (*TaskOutcome, error) {
	if err := validateTaskInput(in); err != nil {
		return nil, err
	}
	task, err := s.replaceTask(ctx, userID, taskID, func(task *model.Tasks) (*model.Tasks, error) {
		applyInput(task, in)
		return task, nil
	})
	if err != nil {
		return nil, err
	}
	return s.exportAfterSave(ctx, task), nil
}

// replaceTask reads, changes and stores a task under the per-task sync lock. The export that
// follows runs after the lock is released and re-reads the stored mirror.
func (s *TaskService) replaceTask(ctx context.Context, userID, taskID string, change func(*model.Tasks) (*model.Tasks, error)) (*model.Tasks, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := requireID("taskId", taskID); err != nil {
		return nil, err
	}
	unlock := s.sync.LockTask(userID, taskID)
	defer unlock()

	task, err := s.GetTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	next, err := change(task)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	if err := s.tasks.SaveTask(ctx, next); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	return next, nil
}

func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	if err := requireID("taskId", taskID); err != nil {
		return nil, err
	}
	task, err := s.tasks.GetTask(ctx, userID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFoundLocal
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	return task, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]model.Tasks, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListTasks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes the task and then its calendar event. Deleting a task that is already
// gone succeeds.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) (*SyncResult, error) {
	task, err := s.GetTask(ctx, userID, taskID)
	if errors.Is(err, ErrNotFoundLocal) {
		return &SyncResult{TaskID: taskID, Status: SyncSkipped, Reason: "already deleted"}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.tasks.DeleteTask(ctx, userID, taskID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("delete task: %w", err)
	}

	res, err := s.sync.DeleteTaskEvent(ctx, task)
	if err != nil {
		res.Error = err.Error()
	}
	return &res, nil
}

// CompleteTask finishes the task. A recurring task is replaced in place by its next
// occurrence; otherwise it is marked completed.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID string) (*TaskOutcome, error) {
	rolledOver := false
	next, err := s.replaceTask(ctx, userID, taskID, func(task *model.Tasks) (*model.Tasks, error) {
		if task.Recurring != nil {
			successor, err := s.recurrence.NextOccurrence(task)
			if err != nil {
				return nil, err
			}
			if successor != nil {
				rolledOver = true
				return successor, nil
			}
		}
		task.Completed = true
		return task, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task completed",
		zap.String("user_id", userID),
		zap.String("task_id", taskID),
		zap.Bool("rolled_over", rolledOver),
		zap.String("due_date", next.DueDate),
	)
	return s.exportAfterSave(ctx, next), nil
}

// SeedSampleTasks stores a few demo tasks for a new user. Sample tasks are never exported.
func (s *TaskService) SeedSampleTasks(ctx context.Context, userID string) ([]model.Tasks, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	now := s.now()
	today := civil.DateOf(now.In(s.location))
	samples := []TaskInput{
		{Title: "Plan your day", Description: "Pick the three things that matter today", DueDate: today.String(), IsAllDay: true},
		{Title: "Morning workout", DueDate: today.AddDays(1).String(), StartTime: clockPtr("07:00"), EndTime: clockPtr("07:45"),
			Recurring: &model.Recurrence{Frequency: model.FrequencyDaily}},
		{Title: "Weekly review", Tags: []string{"review"}, DueDate: today.AddDays(7).String(), StartTime: clockPtr("17:00"),
			Recurring: &model.Recurrence{Frequency: model.FrequencyWeekly}},
	}

	out := make([]model.Tasks, 0, len(samples))
	for _, in := range samples {
		task := &model.Tasks{
			TaskID:    s.newID(),
			UserID:    userID,
			Origin:    model.OriginSample,
			CreatedAt: now,
			UpdatedAt: now,
		}
		applyInput(task, in)
		if err := s.tasks.SaveTask(ctx, task); err != nil {
			return nil, fmt.Errorf("save sample task: %w", err)
		}
		out = append(out, *task)
	}
	return out, nil
}

// exportAfterSave mirrors a stored task. Sync failures are reported in the outcome and
// never undo the local write.
func (s *TaskService) exportAfterSave(ctx context.Context, task *model.Tasks) *TaskOutcome {
	res, err := s.sync.ExportTask(ctx, task.UserID, task.TaskID)
	if err != nil && res.Error == "" {
		res.Error = err.Error()
	}
	outcome := &TaskOutcome{Task: task, Sync: &res}

	switch {
	case res.Status == SyncExported:
		task.SetMirror(res.EventID, res.CalendarID)
		task.SyncPending = false
	case res.Status == SyncFailed && !errors.Is(err, ErrNotFoundLocal) && !errors.Is(err, ErrAuthExpired) && !IsValidation(err):
		task.SyncPending = true
	}
	return outcome
}

func applyInput(task *model.Tasks, in TaskInput) {
	task.Title = in.Title
	task.Description = in.Description
	task.Tags = in.Tags
	task.DueDate = in.DueDate
	task.StartTime = in.StartTime
	task.EndTime = in.EndTime
	task.IsAllDay = in.IsAllDay
	task.Recurring = in.Recurring
}

func validateTaskInput(in TaskInput) error {
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: "is required"}
	}
	if _, err := civil.ParseDate(in.DueDate); err != nil {
		return &ValidationError{Field: "dueDate", Message: "must be a YYYY-MM-DD date"}
	}
	var start, end time.Time
	var err error
	if in.StartTime != nil {
		if start, err = time.Parse(clockLayout, *in.StartTime); err != nil {
			return &ValidationError{Field: "startTime", Message: "must be HH:MM"}
		}
	}
	if in.EndTime != nil {
		if end, err = time.Parse(clockLayout, *in.EndTime); err != nil {
			return &ValidationError{Field: "endTime", Message: "must be HH:MM"}
		}
		if in.StartTime != nil && !end.After(start) {
			return &ValidationError{Field: "endTime", Message: "must be after startTime"}
		}
	}
	if r := in.Recurring; r != nil {
		switch r.Frequency {
		case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly, model.FrequencyCustom:
		default:
			return &ValidationError{Field: "recurring.frequency", Message: "must be daily, weekly, monthly or custom"}
		}
		if r.EndDate != nil && *r.EndDate != "" {
			if _, err := civil.ParseDate(*r.EndDate); err != nil {
				return &ValidationError{Field: "recurring.endDate", Message: "must be a YYYY-MM-DD date"}
			}
		}
	}
	return nil
}

func clockPtr(s string) *string { return &s }
