package services

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"mydayplanner/model"
	"mydayplanner/repository"
)

type SyncStatus string

const (
	SyncSkipped  SyncStatus = "skipped"
	SyncExported SyncStatus = "exported"
	SyncDeleted  SyncStatus = "deleted"
	SyncFailed   SyncStatus = "failed"
)

type SyncResult struct {
	TaskID     string     `json:"taskId,omitempty"`
	Status     SyncStatus `json:"status"`
	EventID    string     `json:"eventId,omitempty"`
	CalendarID string     `json:"calendarId,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type SyncOptions struct {
	ExportEnabled bool
	BatchSize     int
}

// SyncService mirrors local tasks into the user's external calendar. Local state is
// authoritative: nothing here rolls back a task mutation.
type SyncService struct {
	tasks        TaskStore
	integrations IntegrationStore
	tokens       TokenEnsurer
	gateway      CalendarGateway
	opts         SyncOptions
	locks        *keyLock
	log          *zap.Logger
}

func NewSyncService(tasks TaskStore, integrations IntegrationStore, tokens TokenEnsurer, gateway CalendarGateway, opts SyncOptions, log *zap.Logger) *SyncService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &SyncService{
		tasks:        tasks,
		integrations: integrations,
		tokens:       tokens,
		gateway:      gateway,
		opts:         opts,
		locks:        newKeyLock(),
		log:          log,
	}
}

func taskKey(userID, taskID string) string {
	return userID + "/" + taskID
}

// LockTask holds the per-task lock the sync paths take, so a caller can read and replace a
// task without a concurrent export recording a mirror in between.
func (s *SyncService) LockTask(userID, taskID string) (unlock func()) {
	return s.locks.Lock(taskKey(userID, taskID))
}

// ExportTask creates or updates the calendar event of one task and records the mirror.
func (s *SyncService) ExportTask(ctx context.Context, userID, taskID string) (SyncResult, error) {
	if err := requireID("userId", userID); err != nil {
		return SyncResult{Status: SyncFailed, Error: err.Error()}, err
	}
	if err := requireID("taskId", taskID); err != nil {
		return SyncResult{Status: SyncFailed, Error: err.Error()}, err
	}

	unlock := s.locks.Lock(taskKey(userID, taskID))
	defer unlock()

	task, err := s.tasks.GetTask(ctx, userID, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return SyncResult{TaskID: taskID, Status: SyncFailed, Error: ErrNotFoundLocal.Error()}, ErrNotFoundLocal
	}
	if err != nil {
		return SyncResult{TaskID: taskID, Status: SyncFailed, Error: err.Error()}, fmt.Errorf("load task: %w", err)
	}
	return s.export(ctx, task)
}

// ExportTasks exports each id in order and reports a result per id.
func (s *SyncService) ExportTasks(ctx context.Context, userID string, taskIDs []string) ([]SyncResult, error) {
	if err := requireID("userId", userID); err != nil {
		return nil, err
	}
	results := make([]SyncResult, 0, len(taskIDs))
	for _, id := range taskIDs {
		res, err := s.ExportTask(ctx, userID, id)
		res.TaskID = id
		if err != nil && res.Error == "" {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *SyncService) export(ctx context.Context, task *model.Tasks) (SyncResult, error) {
	result := SyncResult{TaskID: task.TaskID}

	if reason := s.skipReason(task); reason != "" {
		result.Status, result.Reason = SyncSkipped, reason
		return result, nil
	}
	integration, err := s.connectedIntegration(ctx, task.UserID)
	if err != nil {
		return s.fail(ctx, task, "export", err)
	}
	if integration == nil {
		result.Status, result.Reason = SyncSkipped, "not connected"
		return result, nil
	}

	input, err := eventInputFromTask(task)
	if err != nil {
		result.Status, result.Error = SyncFailed, err.Error()
		recordSync("export", SyncFailed)
		return result, err
	}

	token, err := s.tokens.EnsureValidToken(ctx, integration)
	if err != nil {
		return s.fail(ctx, task, "export", err)
	}

	calendarID := integration.CalendarID()
	var eventID string
	if task.HasMirror() {
		calendarID = *task.GoogleCalendarID
		eventID, err = s.gateway.UpdateEvent(ctx, token.AccessToken, calendarID, *task.GoogleCalendarEventID, input)
		if errors.Is(err, ErrEventNotFound) {
			// removed on the provider side; export again as a new event
			calendarID = integration.CalendarID()
			eventID, err = s.gateway.CreateEvent(ctx, token.AccessToken, calendarID, input)
		}
	} else {
		eventID, err = s.gateway.CreateEvent(ctx, token.AccessToken, calendarID, input)
	}
	if err != nil {
		return s.fail(ctx, task, "export", err)
	}

	if err := s.tasks.SetTaskMirror(ctx, task.UserID, task.TaskID, eventID, calendarID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// deleted locally while the call was in flight; do not leave an orphan behind
			if derr := s.gateway.DeleteEvent(ctx, token.AccessToken, calendarID, eventID); derr != nil && !errors.Is(derr, ErrEventNotFound) {
				s.log.Warn("orphaned calendar event left behind",
					zap.String("user_id", task.UserID),
					zap.String("event_id", eventID),
					zap.Error(derr),
				)
			}
			result.Status, result.Error = SyncFailed, ErrNotFoundLocal.Error()
			return result, ErrNotFoundLocal
		}
		return s.fail(ctx, task, "export", fmt.Errorf("record mirror: %w", err))
	}

	recordSync("export", SyncExported)
	s.log.Info("task exported",
		zap.String("user_id", task.UserID),
		zap.String("task_id", task.TaskID),
		zap.String("event_id", eventID),
	)
	result.Status, result.EventID, result.CalendarID = SyncExported, eventID, calendarID
	return result, nil
}

func (s *SyncService) skipReason(task *model.Tasks) string {
	switch {
	case !s.opts.ExportEnabled:
		return "export disabled"
	case task.IsSample():
		return "sample task"
	}
	return ""
}

// connectedIntegration returns nil, nil when the user has no usable integration.
func (s *SyncService) connectedIntegration(ctx context.Context, userID string) (*model.Integration, error) {
	integration, err := s.integrations.GetIntegration(ctx, userID, model.ProviderGoogle)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}
	if !integration.Connected {
		return nil, nil
	}
	return integration, nil
}

// fail logs the failure and flags the task so the pulse retries it. An expired credential is
// not retried: only a reconnect by the user can fix it.
func (s *SyncService) fail(ctx context.Context, task *model.Tasks, operation string, cause error) (SyncResult, error) {
	recordSync(operation, SyncFailed)
	s.log.Warn("calendar sync failed",
		zap.String("operation", operation),
		zap.String("user_id", task.UserID),
		zap.String("task_id", task.TaskID),
		zap.Error(cause),
	)
	if errors.Is(cause, ErrAuthExpired) {
		return SyncResult{TaskID: task.TaskID, Status: SyncFailed, Reason: "reconnect required", Error: cause.Error()}, cause
	}
	if !task.SyncPending {
		if err := s.tasks.MarkSyncPending(ctx, task.UserID, task.TaskID, true); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("mark sync pending", zap.String("task_id", task.TaskID), zap.Error(err))
		}
	}
	return SyncResult{TaskID: task.TaskID, Status: SyncFailed, Error: cause.Error()}, cause
}

// DeleteRemoteEvent removes one event from the provider. An event that is already gone
// counts as deleted.
func (s *SyncService) DeleteRemoteEvent(ctx context.Context, userID, calendarID, eventID string) (SyncResult, error) {
	for _, id := range []struct{ field, value string }{
		{"userId", userID}, {"calendarId", calendarID}, {"eventId", eventID},
	} {
		if err := requireID(id.field, id.value); err != nil {
			return SyncResult{Status: SyncFailed, Error: err.Error()}, err
		}
	}
	return s.deleteRemote(ctx, userID, calendarID, eventID)
}

// DeleteTaskEvent removes the mirror of a task that was deleted locally. It waits behind any
// sync still running for the same task.
func (s *SyncService) DeleteTaskEvent(ctx context.Context, task *model.Tasks) (SyncResult, error) {
	if !task.HasMirror() {
		return SyncResult{TaskID: task.TaskID, Status: SyncSkipped, Reason: "no mirror"}, nil
	}
	unlock := s.locks.Lock(taskKey(task.UserID, task.TaskID))
	defer unlock()

	res, err := s.deleteRemote(ctx, task.UserID, *task.GoogleCalendarID, *task.GoogleCalendarEventID)
	res.TaskID = task.TaskID
	return res, err
}

func (s *SyncService) deleteRemote(ctx context.Context, userID, calendarID, eventID string) (SyncResult, error) {
	result := SyncResult{EventID: eventID, CalendarID: calendarID}

	integration, err := s.connectedIntegration(ctx, userID)
	if err != nil {
		return s.failDelete(result, userID, err)
	}
	if integration == nil {
		result.Status, result.Reason = SyncSkipped, "not connected"
		return result, nil
	}
	token, err := s.tokens.EnsureValidToken(ctx, integration)
	if err != nil {
		return s.failDelete(result, userID, err)
	}
	err = s.gateway.DeleteEvent(ctx, token.AccessToken, calendarID, eventID)
	if err != nil && !errors.Is(err, ErrEventNotFound) {
		return s.failDelete(result, userID, err)
	}

	recordSync("delete", SyncDeleted)
	result.Status = SyncDeleted
	return result, nil
}

func (s *SyncService) failDelete(result SyncResult, userID string, cause error) (SyncResult, error) {
	recordSync("delete", SyncFailed)
	s.log.Warn("calendar event delete failed",
		zap.String("user_id", userID),
		zap.String("calendar_id", result.CalendarID),
		zap.String("event_id", result.EventID),
		zap.Error(cause),
	)
	result.Status, result.Error = SyncFailed, cause.Error()
	return result, cause
}

// SyncPending retries one batch of tasks whose mirror is known to be stale. It is the job
// the background pulse runs.
func (s *SyncService) SyncPending(ctx context.Context) (exported int, err error) {
	pending, err := s.tasks.ListSyncPending(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending tasks: %w", err)
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		res, err := s.retryPending(ctx, p.UserID, p.TaskID)
		if err != nil {
			continue
		}
		if res.Status == SyncExported {
			exported++
		}
	}
	return exported, nil
}

func (s *SyncService) retryPending(ctx context.Context, userID, taskID string) (SyncResult, error) {
	unlock := s.locks.Lock(taskKey(userID, taskID))
	defer unlock()

	task, err := s.tasks.GetTask(ctx, userID, taskID)
	if err != nil {
		return SyncResult{Status: SyncFailed}, err
	}
	if !task.SyncPending {
		return SyncResult{TaskID: taskID, Status: SyncSkipped, Reason: "already synced"}, nil
	}
	res, err := s.export(ctx, task)
	if (err == nil && res.Status == SyncSkipped) || errors.Is(err, ErrAuthExpired) {
		// nothing will export it until the user acts (disconnected, expired, sample); stop retrying
		if err := s.tasks.MarkSyncPending(ctx, userID, taskID, false); err != nil && !errors.Is(err, repository.ErrNotFound) {
			s.log.Error("clear sync pending", zap.String("task_id", taskID), zap.Error(err))
		}
	}
	return res, err
}

func eventInputFromTask(task *model.Tasks) (EventInput, error) {
	date, err := civil.ParseDate(task.DueDate)
	if err != nil {
		return EventInput{}, &ValidationError{Field: "dueDate", Message: "must be a YYYY-MM-DD date"}
	}
	in := EventInput{
		Title:       task.Title,
		Description: task.Description,
		Date:        date,
		AllDay:      task.IsAllDay,
	}
	if task.StartTime != nil {
		in.StartTime = *task.StartTime
	}
	if task.EndTime != nil {
		in.EndTime = *task.EndTime
	}
	return in, nil
}
